package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Lot is a single gold purchase: the unit of cost basis all sales are recorded against.
type Lot struct {
	ID           string
	Grams        decimal.Decimal
	PricePerGram decimal.Decimal
	BoughtAt     time.Time
	Notes        *string
	Sales        []Sale // по соглашению свежие продажи в начале
}

// Sale is one sell against exactly one lot. Sales created by a batch sell share
// a BatchID and are edited/deleted only batch-wide.
type Sale struct {
	ID           string
	LotID        string
	Grams        decimal.Decimal
	PricePerGram decimal.Decimal
	Fee          decimal.Decimal
	SoldAt       time.Time
	Notes        *string
	BatchID      *string
}

// BatchView is the derived view of one batch sell over several lots.
// It is recomputed from the ledger on every read and never stored.
type BatchView struct {
	BatchID      string
	Lots         []Lot
	PricePerGram decimal.Decimal // общая цена продажи для всех участников
	SoldAt       time.Time
	Notes        *string
	TotalGrams   decimal.Decimal // полный объем лотов-участников, не только проданная часть
	AvgBuyPrice  decimal.Decimal
	TotalProfit  decimal.Decimal
	TotalFee     decimal.Decimal
	FullySold    bool
}

// LedgerItem is one display row: either a standalone lot or a whole batch.
type LedgerItem struct {
	Lot   *Lot
	Batch *BatchView
}

type PortfolioStats struct {
	TotalProfit decimal.Decimal
	ActiveGrams decimal.Decimal
}

type ProfitPoint struct {
	SoldAt time.Time
	Profit decimal.Decimal
}
