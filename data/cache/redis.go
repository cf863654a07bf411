package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/KotFed0t/gold_ledger_bot/config"
	"github.com/KotFed0t/gold_ledger_bot/internal/model"
	"github.com/KotFed0t/gold_ledger_bot/utils"
	"github.com/redis/go-redis/v9"
)

const goldPriceKey = "gold_price"

var ErrNotFound = errors.New("cache key not found")

type RedisCache struct {
	redis *redis.Client
	cfg   *config.Config
}

func NewRedisCache(redisClient *redis.Client, cfg *config.Config) *RedisCache {
	return &RedisCache{redis: redisClient, cfg: cfg}
}

func (r *RedisCache) SetGoldPrice(ctx context.Context, price model.GoldPrice) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("SetGoldPrice start", slog.String("rqID", rqID))

	priceJson, err := json.Marshal(price)
	if err != nil {
		slog.Error(
			"can't marshall gold price in SetGoldPrice",
			slog.String("rqID", rqID),
			slog.String("err", err.Error()),
			slog.Any("price", price),
		)
		return errors.New("can't marshall gold price")
	}

	err = r.redis.Set(ctx, goldPriceKey, priceJson, r.cfg.Cache.GoldPriceExpiration).Err()
	if err != nil {
		slog.Error("failed on redis.Set", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return err
	}

	slog.Debug("SetGoldPrice completed", slog.String("rqID", rqID))

	return nil
}

func (r *RedisCache) GetGoldPrice(ctx context.Context) (model.GoldPrice, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("GetGoldPrice start", slog.String("rqID", rqID))

	res, err := r.redis.Get(ctx, goldPriceKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.GoldPrice{}, ErrNotFound
		}
		slog.Error("failed on redis.Get", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return model.GoldPrice{}, err
	}

	price := model.GoldPrice{}
	err = json.Unmarshal([]byte(res), &price)
	if err != nil {
		slog.Error(
			"can't unmarshall gold price in GetGoldPrice",
			slog.String("rqID", rqID),
			slog.String("err", err.Error()),
			slog.String("resultFromRedis", res),
		)
		return model.GoldPrice{}, errors.New("can't unmarshall gold price")
	}

	slog.Debug("GetGoldPrice completed", slog.String("rqID", rqID))

	return price, nil
}
