// Package accounting содержит чистую арифметику учёта: остатки, прибыль,
// проверки перепродажи и агрегаты портфеля. Функции не имеют побочных эффектов.
package accounting

import (
	"errors"
	"iter"
	"slices"
	"time"

	"github.com/KotFed0t/gold_ledger_bot/internal/model"
	"github.com/shopspring/decimal"
)

var (
	ErrOverdraft       = errors.New("sale exceeds lot remainder")
	ErrNothingToSell   = errors.New("nothing left to sell")
	ErrLotInOtherBatch = errors.New("lot already carries a sale of another batch")
)

// overdraftTolerance поглощает хвост округления, когда продают ровно весь
// остаток партии.
var overdraftTolerance = decimal.New(1, -5)

// fullySoldTolerance: остаток меньше этой величины считаем нулевым.
var fullySoldTolerance = decimal.New(1, -4)

// Remaining возвращает непроданный остаток лота в граммах.
func Remaining(lot model.Lot) decimal.Decimal {
	rem := lot.Grams
	for _, sale := range lot.Sales {
		rem = rem.Sub(sale.Grams)
	}
	return rem
}

func IsFullySold(lot model.Lot) bool {
	return Remaining(lot).LessThanOrEqual(fullySoldTolerance)
}

// ValidateSale проверяет, что из лота можно продать grams граммов.
// excludeSaleID исключает продажу из расчёта остатка (при её редактировании),
// пустая строка — ничего не исключать.
func ValidateSale(lot model.Lot, grams decimal.Decimal, excludeSaleID string) error {
	if !grams.IsPositive() {
		return ErrNothingToSell
	}
	rem := lot.Grams
	for _, sale := range lot.Sales {
		if excludeSaleID != "" && sale.ID == excludeSaleID {
			continue
		}
		rem = rem.Sub(sale.Grams)
	}
	if grams.Sub(rem).GreaterThan(overdraftTolerance) {
		return ErrOverdraft
	}
	return nil
}

// ValidateLotResize проверяет, что после изменения веса лота до newGrams все
// записанные продажи остаются покрытыми.
func ValidateLotResize(lot model.Lot, newGrams decimal.Decimal) error {
	if !newGrams.IsPositive() {
		return ErrNothingToSell
	}
	sold := decimal.Zero
	for _, sale := range lot.Sales {
		sold = sold.Add(sale.Grams)
	}
	if sold.Sub(newGrams).GreaterThan(overdraftTolerance) {
		return ErrOverdraft
	}
	return nil
}

// SaleProfit считает реализованную прибыль одной продажи:
// (цена продажи - цена покупки) * граммы - комиссия.
func SaleProfit(lot model.Lot, sale model.Sale) decimal.Decimal {
	return sale.PricePerGram.Sub(lot.PricePerGram).Mul(sale.Grams).Sub(sale.Fee)
}

func LotProfit(lot model.Lot) decimal.Decimal {
	profit := decimal.Zero
	for _, sale := range lot.Sales {
		profit = profit.Add(SaleProfit(lot, sale))
	}
	return profit
}

// Stats пересчитывает агрегаты портфеля с нуля, ничего не кэшируя.
func Stats(lots []model.Lot) model.PortfolioStats {
	var st model.PortfolioStats
	for _, lot := range lots {
		st.TotalProfit = st.TotalProfit.Add(LotProfit(lot))
		if !IsFullySold(lot) {
			st.ActiveGrams = st.ActiveGrams.Add(Remaining(lot))
		}
	}
	return st
}

// ProfitPoints отдаёт все продажи портфеля как пары (дата, прибыль) по
// возрастанию даты. Последовательность можно обходить повторно.
func ProfitPoints(lots []model.Lot) iter.Seq2[time.Time, decimal.Decimal] {
	type point struct {
		at     time.Time
		profit decimal.Decimal
	}
	points := make([]point, 0)
	for _, lot := range lots {
		for _, sale := range lot.Sales {
			points = append(points, point{at: sale.SoldAt, profit: SaleProfit(lot, sale)})
		}
	}
	slices.SortStableFunc(points, func(a, b point) int {
		return a.at.Compare(b.at)
	})
	return func(yield func(time.Time, decimal.Decimal) bool) {
		for _, p := range points {
			if !yield(p.at, p.profit) {
				return
			}
		}
	}
}
