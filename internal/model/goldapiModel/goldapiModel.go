package goldapiModel

import "github.com/shopspring/decimal"

type PriceResponse struct {
	Timestamp    int64           `json:"timestamp"`
	Metal        string          `json:"metal"`
	Currency     string          `json:"currency"`
	Price        decimal.Decimal `json:"price"`
	PriceGram24K decimal.Decimal `json:"price_gram_24k"`
}
