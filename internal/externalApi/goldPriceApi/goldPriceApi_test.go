package goldPriceApi

import (
	"testing"

	"github.com/KotFed0t/gold_ledger_bot/internal/model/goldapiModel"
	"github.com/shopspring/decimal"
)

func TestPricePerGram(t *testing.T) {
	t.Run("prefers per gram price", func(t *testing.T) {
		resp := goldapiModel.PriceResponse{
			Price:        decimal.RequireFromString("230000"),
			PriceGram24K: decimal.RequireFromString("7400.5"),
		}
		got, err := pricePerGram(resp)
		if err != nil {
			t.Fatalf("pricePerGram() error: %v", err)
		}
		if !got.Equal(decimal.RequireFromString("7400.5")) {
			t.Errorf("pricePerGram() = %s, want 7400.5", got)
		}
	})

	t.Run("falls back to ounce price", func(t *testing.T) {
		// 31.1034768 * 7000
		resp := goldapiModel.PriceResponse{
			Price: decimal.RequireFromString("217724.3376"),
		}
		got, err := pricePerGram(resp)
		if err != nil {
			t.Fatalf("pricePerGram() error: %v", err)
		}
		if !got.Equal(decimal.RequireFromString("7000")) {
			t.Errorf("pricePerGram() = %s, want 7000", got)
		}
	})

	t.Run("no usable price", func(t *testing.T) {
		if _, err := pricePerGram(goldapiModel.PriceResponse{}); err == nil {
			t.Error("pricePerGram() expected error for empty response")
		}
	})
}
