package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// LotSummary is a lot enriched with derived values for display.
type LotSummary struct {
	Lot
	Remaining  decimal.Decimal
	Profit     decimal.Decimal
	FullySold  bool
	Selectable bool
	Selected   bool
}

type PortfolioItem struct {
	Lot   *LotSummary
	Batch *BatchView
}

type PortfolioPage struct {
	PortfolioStats
	GoldPrice     *GoldPrice
	ActiveValue   *decimal.Decimal // стоимость остатка по текущей котировке
	Items         []PortfolioItem
	CurPage       int
	HasNextPage   bool
	SelectedCount int
	SelectedGrams decimal.Decimal
}

type GoldPrice struct {
	PricePerGram decimal.Decimal
	UpdatedAt    time.Time
}

// LedgerReport holds everything the xlsx export renders for one chat.
type LedgerReport struct {
	ChatID       int64
	Stats        PortfolioStats
	Lots         []LotSummary
	Batches      []BatchView
	ProfitPoints []ProfitPoint
}
