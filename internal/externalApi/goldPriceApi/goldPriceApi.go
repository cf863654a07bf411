package goldPriceApi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/KotFed0t/gold_ledger_bot/config"
	"github.com/KotFed0t/gold_ledger_bot/internal/model"
	"github.com/KotFed0t/gold_ledger_bot/internal/model/goldapiModel"
	"github.com/KotFed0t/gold_ledger_bot/utils"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// граммов в тройской унции
var troyOunceGrams = decimal.RequireFromString("31.1034768")

type GoldPriceApi struct {
	client *resty.Client
	cfg    *config.Config
}

func New(cfg *config.Config) *GoldPriceApi {
	client := resty.New().
		SetDebug(cfg.API.Debug).
		SetTimeout(cfg.API.Timeout).
		SetBaseURL(cfg.API.GoldPriceApi.Url)
	return &GoldPriceApi{client: client, cfg: cfg}
}

// GetGoldPrice возвращает текущую биржевую цену золота в рублях за грамм.
func (a *GoldPriceApi) GetGoldPrice(ctx context.Context) (model.GoldPrice, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	url := "/XAU/RUB"

	slog.Debug("start GoldPriceApi.GetGoldPrice request", slog.String("rqID", rqID))

	resp, err := a.client.R().
		SetHeader("Accept", "application/json").
		SetHeader("x-access-token", a.cfg.API.GoldPriceApi.Token).
		Get(url)
	if err != nil {
		slog.Error("error while dialing GoldPriceApi", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return model.GoldPrice{}, err
	}

	if resp.IsError() {
		err = fmt.Errorf("gold price api responded with status %d", resp.StatusCode())
		slog.Error("GoldPriceApi bad status", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return model.GoldPrice{}, err
	}

	priceResp := goldapiModel.PriceResponse{}
	err = json.Unmarshal(resp.Body(), &priceResp)
	if err != nil {
		slog.Error("can't unmarshall response into goldapiModel.PriceResponse", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return model.GoldPrice{}, err
	}

	price, err := pricePerGram(priceResp)
	if err != nil {
		slog.Error("can't parse gold price from response", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return model.GoldPrice{}, err
	}

	updatedAt := time.Now()
	if priceResp.Timestamp > 0 {
		updatedAt = time.Unix(priceResp.Timestamp, 0)
	}

	slog.Debug("GoldPriceApi.GetGoldPrice request complete", slog.String("rqID", rqID))

	return model.GoldPrice{PricePerGram: price, UpdatedAt: updatedAt}, nil
}

// pricePerGram берёт цену за грамм 24k, а при её отсутствии пересчитывает из
// цены за тройскую унцию.
func pricePerGram(resp goldapiModel.PriceResponse) (decimal.Decimal, error) {
	if resp.PriceGram24K.IsPositive() {
		return resp.PriceGram24K, nil
	}
	if resp.Price.IsPositive() {
		return resp.Price.Div(troyOunceGrams).Round(2), nil
	}
	return decimal.Decimal{}, errors.New("response contains no positive price")
}
