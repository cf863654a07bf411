package telegram

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func d(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	v, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal literal %q: %v", s, err)
	}
	return v
}

func day(y int, m time.Month, dd int) time.Time {
	return time.Date(y, m, dd, 0, 0, 0, 0, time.UTC)
}

func TestParseLotInput(t *testing.T) {
	now := time.Date(2024, 5, 21, 15, 30, 0, 0, time.UTC)
	today := day(2024, time.May, 21)

	tests := []struct {
		name      string
		text      string
		wantGrams string
		wantPrice string
		wantDate  time.Time
		wantNotes string
	}{
		{name: "минимальный ввод", text: "10 5000", wantGrams: "10", wantPrice: "5000", wantDate: today},
		{name: "запятая как разделитель", text: "2,5 7100,50", wantGrams: "2.5", wantPrice: "7100.50", wantDate: today},
		{name: "с датой", text: "10 5000 20.05.2024", wantGrams: "10", wantPrice: "5000", wantDate: day(2024, time.May, 20)},
		{name: "короткая дата", text: "10 5000 2.5.2024", wantGrams: "10", wantPrice: "5000", wantDate: day(2024, time.May, 2)},
		{name: "дата и заметка", text: "10 5000 20.05.2024 слиток из банка", wantGrams: "10", wantPrice: "5000", wantDate: day(2024, time.May, 20), wantNotes: "слиток из банка"},
		{name: "заметка без даты", text: "10 5000 подарок", wantGrams: "10", wantPrice: "5000", wantDate: today, wantNotes: "подарок"},
		{name: "заметка с цифрами", text: "10 5000 20.05.2024 999 проба", wantGrams: "10", wantPrice: "5000", wantDate: day(2024, time.May, 20), wantNotes: "999 проба"},
		{name: "лишние пробелы", text: "  10   5000  ", wantGrams: "10", wantPrice: "5000", wantDate: today},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in, err := parseLotInput(tc.text, now)
			if err != nil {
				t.Fatalf("parseLotInput(%q): unexpected error %v", tc.text, err)
			}
			if !in.grams.Equal(d(t, tc.wantGrams)) {
				t.Errorf("grams = %s, want %s", in.grams, tc.wantGrams)
			}
			if !in.pricePerGram.Equal(d(t, tc.wantPrice)) {
				t.Errorf("pricePerGram = %s, want %s", in.pricePerGram, tc.wantPrice)
			}
			if !in.boughtAt.Equal(tc.wantDate) {
				t.Errorf("boughtAt = %s, want %s", in.boughtAt, tc.wantDate)
			}
			if tc.wantNotes == "" && in.notes != nil {
				t.Errorf("notes = %q, want nil", *in.notes)
			}
			if tc.wantNotes != "" && (in.notes == nil || *in.notes != tc.wantNotes) {
				t.Errorf("notes = %v, want %q", in.notes, tc.wantNotes)
			}
		})
	}
}

func TestParseLotInputErrors(t *testing.T) {
	now := time.Now()

	for _, text := range []string{"", "10", "0 5000", "-1 5000", "10 0", "10 -5000", "abc 5000", "10 abc"} {
		if _, err := parseLotInput(text, now); err == nil {
			t.Errorf("parseLotInput(%q): expected error, got nil", text)
		}
	}
}

func TestParseSaleInput(t *testing.T) {
	now := time.Date(2024, 5, 21, 15, 30, 0, 0, time.UTC)
	today := day(2024, time.May, 21)

	tests := []struct {
		name      string
		text      string
		sellAll   bool
		wantGrams string
		wantPrice string
		wantFee   string
		wantDate  time.Time
		wantNotes string
	}{
		{name: "без комиссии", text: "5 7100", wantGrams: "5", wantPrice: "7100", wantFee: "0", wantDate: today},
		{name: "с комиссией", text: "5 7100 150", wantGrams: "5", wantPrice: "7100", wantFee: "150", wantDate: today},
		{name: "полный формат", text: "5 7100 150 20.05.2024 продал в ломбарде", wantGrams: "5", wantPrice: "7100", wantFee: "150", wantDate: day(2024, time.May, 20), wantNotes: "продал в ломбарде"},
		{name: "дата не съедается как комиссия", text: "5 7100 20.05.2024", wantGrams: "5", wantPrice: "7100", wantFee: "0", wantDate: day(2024, time.May, 20)},
		{name: "комиссия и заметка без даты", text: "5 7100 150 без даты", wantGrams: "5", wantPrice: "7100", wantFee: "150", wantDate: today, wantNotes: "без даты"},
		{name: "дробная комиссия через запятую", text: "5 7100 0,5", wantGrams: "5", wantPrice: "7100", wantFee: "0.5", wantDate: today},
		{name: "заметка словами без комиссии", text: "5 7100 продал быстро", wantGrams: "5", wantPrice: "7100", wantFee: "0", wantDate: today, wantNotes: "продал быстро"},
		{name: "всё с ё", text: "всё 7100", sellAll: true, wantPrice: "7100", wantFee: "0", wantDate: today},
		{name: "все без ё", text: "все 7100 150", sellAll: true, wantPrice: "7100", wantFee: "150", wantDate: today},
		{name: "регистр не важен", text: "ВСЁ 7100", sellAll: true, wantPrice: "7100", wantFee: "0", wantDate: today},
		{name: "all латиницей", text: "all 7100", sellAll: true, wantPrice: "7100", wantFee: "0", wantDate: today},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in, err := parseSaleInput(tc.text, now)
			if err != nil {
				t.Fatalf("parseSaleInput(%q): unexpected error %v", tc.text, err)
			}
			if tc.sellAll {
				if in.grams != nil {
					t.Errorf("grams = %s, want nil (sell all)", in.grams)
				}
			} else {
				if in.grams == nil {
					t.Fatalf("grams = nil, want %s", tc.wantGrams)
				}
				if !in.grams.Equal(d(t, tc.wantGrams)) {
					t.Errorf("grams = %s, want %s", in.grams, tc.wantGrams)
				}
			}
			if !in.pricePerGram.Equal(d(t, tc.wantPrice)) {
				t.Errorf("pricePerGram = %s, want %s", in.pricePerGram, tc.wantPrice)
			}
			if !in.fee.Equal(d(t, tc.wantFee)) {
				t.Errorf("fee = %s, want %s", in.fee, tc.wantFee)
			}
			if !in.soldAt.Equal(tc.wantDate) {
				t.Errorf("soldAt = %s, want %s", in.soldAt, tc.wantDate)
			}
			if tc.wantNotes == "" && in.notes != nil {
				t.Errorf("notes = %q, want nil", *in.notes)
			}
			if tc.wantNotes != "" && (in.notes == nil || *in.notes != tc.wantNotes) {
				t.Errorf("notes = %v, want %q", in.notes, tc.wantNotes)
			}
		})
	}
}

func TestParseSaleInputErrors(t *testing.T) {
	now := time.Now()

	for _, text := range []string{"", "7100", "всё", "0 7100", "-5 7100", "5 0", "5 -7100", "5 7100 -10", "abc"} {
		if _, err := parseSaleInput(text, now); err == nil {
			t.Errorf("parseSaleInput(%q): expected error, got nil", text)
		}
	}
}

func TestParseBatchSaleInput(t *testing.T) {
	now := time.Date(2024, 5, 21, 15, 30, 0, 0, time.UTC)
	today := day(2024, time.May, 21)

	tests := []struct {
		name      string
		text      string
		wantPrice string
		wantFee   string
		wantDate  time.Time
		wantNotes string
	}{
		{name: "только цена", text: "7100", wantPrice: "7100", wantFee: "0", wantDate: today},
		{name: "с общей комиссией", text: "7100 300", wantPrice: "7100", wantFee: "300", wantDate: today},
		{name: "полный формат", text: "7100 300 20.05.2024 сдал все в ломбард", wantPrice: "7100", wantFee: "300", wantDate: day(2024, time.May, 20), wantNotes: "сдал все в ломбард"},
		{name: "дата не съедается как комиссия", text: "7100 20.05.2024", wantPrice: "7100", wantFee: "0", wantDate: day(2024, time.May, 20)},
		{name: "запятая в цене", text: "7100,25 300", wantPrice: "7100.25", wantFee: "300", wantDate: today},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in, err := parseBatchSaleInput(tc.text, now)
			if err != nil {
				t.Fatalf("parseBatchSaleInput(%q): unexpected error %v", tc.text, err)
			}
			if !in.pricePerGram.Equal(d(t, tc.wantPrice)) {
				t.Errorf("pricePerGram = %s, want %s", in.pricePerGram, tc.wantPrice)
			}
			if !in.totalFee.Equal(d(t, tc.wantFee)) {
				t.Errorf("totalFee = %s, want %s", in.totalFee, tc.wantFee)
			}
			if !in.soldAt.Equal(tc.wantDate) {
				t.Errorf("soldAt = %s, want %s", in.soldAt, tc.wantDate)
			}
			if tc.wantNotes == "" && in.notes != nil {
				t.Errorf("notes = %q, want nil", *in.notes)
			}
			if tc.wantNotes != "" && (in.notes == nil || *in.notes != tc.wantNotes) {
				t.Errorf("notes = %v, want %q", in.notes, tc.wantNotes)
			}
		})
	}
}

func TestParseBatchSaleInputErrors(t *testing.T) {
	now := time.Now()

	for _, text := range []string{"", "0", "-7100", "abc", "7100 -5"} {
		if _, err := parseBatchSaleInput(text, now); err == nil {
			t.Errorf("parseBatchSaleInput(%q): expected error, got nil", text)
		}
	}
}
