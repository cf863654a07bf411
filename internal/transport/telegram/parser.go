package telegram

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var errBadInput = errors.New("bad input format")

var dateLayouts = []string{"02.01.2006", "2.1.2006"}

type lotInput struct {
	grams        decimal.Decimal
	pricePerGram decimal.Decimal
	boughtAt     time.Time
	notes        *string
}

type saleInput struct {
	grams        *decimal.Decimal // nil означает "продать весь остаток"
	pricePerGram decimal.Decimal
	fee          decimal.Decimal
	soldAt       time.Time
	notes        *string
}

type batchSaleInput struct {
	pricePerGram decimal.Decimal
	totalFee     decimal.Decimal
	soldAt       time.Time
	notes        *string
}

func parseDateToken(token string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, token); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseDecimalToken(token string) (decimal.Decimal, bool) {
	// запятую принимаем как десятичный разделитель
	v, err := decimal.NewFromString(strings.ReplaceAll(token, ",", "."))
	if err != nil {
		return decimal.Decimal{}, false
	}
	return v, true
}

func isSellAllToken(token string) bool {
	switch strings.ToLower(token) {
	case "всё", "все", "all":
		return true
	}
	return false
}

func defaultDay(now time.Time) time.Time {
	return now.UTC().Truncate(24 * time.Hour)
}

// parseLotInput разбирает "<вес_г> <цена_за_грамм> [дата] [заметка]".
func parseLotInput(text string, now time.Time) (lotInput, error) {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return lotInput{}, errBadInput
	}

	grams, ok := parseDecimalToken(fields[0])
	if !ok || !grams.IsPositive() {
		return lotInput{}, errBadInput
	}

	price, ok := parseDecimalToken(fields[1])
	if !ok || !price.IsPositive() {
		return lotInput{}, errBadInput
	}

	in := lotInput{grams: grams, pricePerGram: price, boughtAt: defaultDay(now)}

	rest := fields[2:]
	if len(rest) > 0 {
		if date, ok := parseDateToken(rest[0]); ok {
			in.boughtAt = date
			rest = rest[1:]
		}
	}
	if len(rest) > 0 {
		notes := strings.Join(rest, " ")
		in.notes = &notes
	}

	return in, nil
}

// parseSaleInput разбирает "<вес_г|всё> <цена_за_грамм> [комиссия] [дата] [заметка]".
func parseSaleInput(text string, now time.Time) (saleInput, error) {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return saleInput{}, errBadInput
	}

	in := saleInput{soldAt: defaultDay(now)}

	if !isSellAllToken(fields[0]) {
		grams, ok := parseDecimalToken(fields[0])
		if !ok || !grams.IsPositive() {
			return saleInput{}, errBadInput
		}
		in.grams = &grams
	}

	price, ok := parseDecimalToken(fields[1])
	if !ok || !price.IsPositive() {
		return saleInput{}, errBadInput
	}
	in.pricePerGram = price

	rest := fields[2:]

	// комиссия идет сразу после цены, дата-токен комиссией не считается
	if len(rest) > 0 {
		if _, isDate := parseDateToken(rest[0]); !isDate {
			if fee, ok := parseDecimalToken(rest[0]); ok {
				if fee.IsNegative() {
					return saleInput{}, errBadInput
				}
				in.fee = fee
				rest = rest[1:]
			}
		}
	}

	if len(rest) > 0 {
		if date, ok := parseDateToken(rest[0]); ok {
			in.soldAt = date
			rest = rest[1:]
		}
	}

	if len(rest) > 0 {
		notes := strings.Join(rest, " ")
		in.notes = &notes
	}

	return in, nil
}

// parseBatchSaleInput разбирает "<цена_за_грамм> [общая_комиссия] [дата] [заметка]".
func parseBatchSaleInput(text string, now time.Time) (batchSaleInput, error) {
	fields := strings.Fields(text)
	if len(fields) < 1 {
		return batchSaleInput{}, errBadInput
	}

	price, ok := parseDecimalToken(fields[0])
	if !ok || !price.IsPositive() {
		return batchSaleInput{}, errBadInput
	}

	in := batchSaleInput{pricePerGram: price, soldAt: defaultDay(now)}

	rest := fields[1:]
	if len(rest) > 0 {
		if _, isDate := parseDateToken(rest[0]); !isDate {
			if fee, ok := parseDecimalToken(rest[0]); ok {
				if fee.IsNegative() {
					return batchSaleInput{}, errBadInput
				}
				in.totalFee = fee
				rest = rest[1:]
			}
		}
	}
	if len(rest) > 0 {
		if date, ok := parseDateToken(rest[0]); ok {
			in.soldAt = date
			rest = rest[1:]
		}
	}
	if len(rest) > 0 {
		notes := strings.Join(rest, " ")
		in.notes = &notes
	}

	return in, nil
}
