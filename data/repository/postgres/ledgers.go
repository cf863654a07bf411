package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/KotFed0t/gold_ledger_bot/data/repository"
	"github.com/KotFed0t/gold_ledger_bot/internal/converter/dbConverter"
	"github.com/KotFed0t/gold_ledger_bot/internal/model"
	"github.com/KotFed0t/gold_ledger_bot/internal/model/dbModel"
	"github.com/KotFed0t/gold_ledger_bot/utils"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
)

// SaveLedger записывает полный слепок лотов чата под его chat_id.
func (r *Postgres) SaveLedger(ctx context.Context, chatID int64, lots []model.Lot) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.SaveLedger"
	params := map[string]any{
		"chatID":   chatID,
		"lotCount": len(lots),
	}
	query := `
		INSERT INTO ledgers(chat_id, payload, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (chat_id) DO UPDATE SET
			payload = EXCLUDED.payload,
			updated_at = now()
		`

	slog.Debug("SaveLedger start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Any("params", params))
	defer func() {
		if err != nil {
			slog.Error("SaveLedger failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("SaveLedger completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	payload, err := json.Marshal(dbConverter.ConvertLotsToDb(lots))
	if err != nil {
		return fmt.Errorf("marshal ledger payload: %w", err)
	}

	_, err = r.txOrDb(ctx).ExecContext(ctx, query, chatID, payload)
	if err != nil {
		return err
	}

	return nil
}

// LoadLedger читает слепок лотов чата. Нераспарсенный payload отдаёт как
// repository.ErrMalformedLedger, отсутствующий чат как repository.ErrNotFound.
func (r *Postgres) LoadLedger(ctx context.Context, chatID int64) (lots []model.Lot, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.LoadLedger"
	params := map[string]any{
		"chatID": chatID,
	}
	query := `SELECT payload FROM ledgers WHERE chat_id = $1`

	slog.Debug("LoadLedger start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Any("params", params))
	defer func() {
		if err != nil {
			slog.Error("LoadLedger failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("LoadLedger completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	var payload []byte
	err = r.txOrDb(ctx).QueryRowContext(ctx, query, chatID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	var dbLots []dbModel.Lot
	if err = json.Unmarshal(payload, &dbLots); err != nil {
		return nil, fmt.Errorf("%w: %s", repository.ErrMalformedLedger, err)
	}

	return dbConverter.ConvertLots(dbLots), nil
}

// GetChatIDs возвращает все чаты с сохранёнными реестрами (для бэкапов).
func (r *Postgres) GetChatIDs(ctx context.Context) (chatIDs []int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetChatIDs"
	query := `SELECT chat_id FROM ledgers ORDER BY chat_id`

	slog.Debug("GetChatIDs start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("GetChatIDs failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetChatIDs completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	rows, err := r.txOrDb(ctx).QueryxContext(ctx, query)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	for rows.Next() {
		var chatID int64
		if err = rows.Scan(&chatID); err != nil {
			return nil, err
		}
		chatIDs = append(chatIDs, chatID)
	}

	return chatIDs, nil
}
