package dbModel

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ledger is a row of the ledgers table: the whole serialized lot collection of
// one chat under its chat_id key.
type Ledger struct {
	ChatID    int64     `db:"chat_id"`
	Payload   []byte    `db:"payload"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Lot and Sale define the payload JSON. Decimals are stored as strings,
// timestamps as RFC3339, optional fields are omitted entirely.
type Lot struct {
	ID           string          `json:"id"`
	Grams        decimal.Decimal `json:"grams"`
	PricePerGram decimal.Decimal `json:"price_per_gram"`
	BoughtAt     time.Time       `json:"bought_at"`
	Notes        *string         `json:"notes,omitempty"`
	Sales        []Sale          `json:"sales,omitempty"`
}

type Sale struct {
	ID           string          `json:"id"`
	LotID        string          `json:"lot_id"`
	Grams        decimal.Decimal `json:"grams"`
	PricePerGram decimal.Decimal `json:"price_per_gram"`
	Fee          decimal.Decimal `json:"fee"`
	SoldAt       time.Time       `json:"sold_at"`
	Notes        *string         `json:"notes,omitempty"`
	BatchID      *string         `json:"batch_id,omitempty"`
}
