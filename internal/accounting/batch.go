package accounting

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/KotFed0t/gold_ledger_bot/internal/model"
	"github.com/shopspring/decimal"
)

// FeeSplitPolicy определяет, как общая комиссия пакетной продажи делится
// между лотами.
type FeeSplitPolicy int

const (
	FeeSplitEven FeeSplitPolicy = iota
	FeeSplitByWeight
)

func ParseFeeSplitPolicy(s string) (FeeSplitPolicy, error) {
	switch s {
	case "", "even":
		return FeeSplitEven, nil
	case "byWeight":
		return FeeSplitByWeight, nil
	}
	return FeeSplitEven, fmt.Errorf("unknown fee split policy %q", s)
}

func (p FeeSplitPolicy) String() string {
	if p == FeeSplitByWeight {
		return "byWeight"
	}
	return "even"
}

// LotBatchID возвращает идентификатор пакета, которому принадлежит лот, или
// nil для одиночного лота. Лот может состоять максимум в одном пакете.
func LotBatchID(lot model.Lot) *string {
	for _, sale := range lot.Sales {
		if sale.BatchID != nil {
			return sale.BatchID
		}
	}
	return nil
}

// PlanBatchSale готовит продажи пакета batchID по каждому выбранному лоту с
// положительным остатком: остаток продаётся целиком, общая комиссия делится
// по policy. Полностью проданные лоты молча пропускаются. Поле ID у продаж
// остаётся пустым, его заполняет вызывающая сторона.
func PlanBatchSale(
	batchID string,
	lots []model.Lot,
	pricePerGram decimal.Decimal,
	totalFee decimal.Decimal,
	soldAt time.Time,
	notes *string,
	policy FeeSplitPolicy,
) ([]model.Sale, error) {
	type part struct {
		lotID string
		grams decimal.Decimal
	}
	parts := make([]part, 0, len(lots))
	totalGrams := decimal.Zero
	for _, lot := range lots {
		if IsFullySold(lot) {
			continue
		}
		if LotBatchID(lot) != nil {
			return nil, ErrLotInOtherBatch
		}
		rem := Remaining(lot)
		parts = append(parts, part{lotID: lot.ID, grams: rem})
		totalGrams = totalGrams.Add(rem)
	}
	if len(parts) == 0 {
		return nil, ErrNothingToSell
	}

	sales := make([]model.Sale, 0, len(parts))
	assignedFee := decimal.Zero
	for i, p := range parts {
		var fee decimal.Decimal
		if i == len(parts)-1 {
			// последний лот добирает остаток, чтобы сумма комиссий сошлась точно
			fee = totalFee.Sub(assignedFee)
		} else {
			switch policy {
			case FeeSplitByWeight:
				fee = totalFee.Mul(p.grams).Div(totalGrams).Round(2)
			default:
				fee = totalFee.Div(decimal.NewFromInt(int64(len(parts)))).Round(2)
			}
			assignedFee = assignedFee.Add(fee)
		}
		sales = append(sales, model.Sale{
			LotID:        p.lotID,
			Grams:        p.grams,
			PricePerGram: pricePerGram,
			Fee:          fee,
			SoldAt:       soldAt,
			Notes:        notes,
			BatchID:      &batchID,
		})
	}
	return sales, nil
}

// NewBatchView агрегирует лоты одного пакета в сводку для отображения.
// Прибыль и комиссия считаются только по продажам самого пакета.
func NewBatchView(batchID string, lots []model.Lot) model.BatchView {
	v := model.BatchView{BatchID: batchID, Lots: lots, FullySold: true}
	weighted := decimal.Zero
	for _, lot := range lots {
		v.TotalGrams = v.TotalGrams.Add(lot.Grams)
		weighted = weighted.Add(lot.PricePerGram.Mul(lot.Grams))
		if !IsFullySold(lot) {
			v.FullySold = false
		}
		for _, sale := range lot.Sales {
			if sale.BatchID == nil || *sale.BatchID != batchID {
				continue
			}
			v.TotalProfit = v.TotalProfit.Add(SaleProfit(lot, sale))
			v.TotalFee = v.TotalFee.Add(sale.Fee)
			v.PricePerGram = sale.PricePerGram
			if sale.SoldAt.After(v.SoldAt) {
				v.SoldAt = sale.SoldAt
			}
			if sale.Notes != nil {
				v.Notes = sale.Notes
			}
		}
	}
	if v.TotalGrams.IsPositive() {
		v.AvgBuyPrice = weighted.Div(v.TotalGrams)
	}
	return v
}

// BuildItems сворачивает лоты в элементы портфеля: лоты одного пакета
// объединяются в один элемент, одиночные проходят как есть. Сначала открытые
// позиции, внутри каждой половины свежие сверху (по дате покупки для лота и
// дате продажи для пакета).
func BuildItems(lots []model.Lot) []model.LedgerItem {
	items := make([]model.LedgerItem, 0, len(lots))
	batchLots := make(map[string][]model.Lot)
	batchOrder := make([]string, 0)
	for _, lot := range lots {
		if id := LotBatchID(lot); id != nil {
			if _, ok := batchLots[*id]; !ok {
				batchOrder = append(batchOrder, *id)
			}
			batchLots[*id] = append(batchLots[*id], lot)
			continue
		}
		items = append(items, model.LedgerItem{Lot: &lot})
	}
	for _, id := range batchOrder {
		view := NewBatchView(id, batchLots[id])
		items = append(items, model.LedgerItem{Batch: &view})
	}
	slices.SortStableFunc(items, func(a, b model.LedgerItem) int {
		if c := cmp.Compare(itemRank(a), itemRank(b)); c != 0 {
			return c
		}
		return itemTime(b).Compare(itemTime(a))
	})
	return items
}

func itemRank(it model.LedgerItem) int {
	if itemClosed(it) {
		return 1
	}
	return 0
}

func itemClosed(it model.LedgerItem) bool {
	if it.Batch != nil {
		return it.Batch.FullySold
	}
	return IsFullySold(*it.Lot)
}

func itemTime(it model.LedgerItem) time.Time {
	if it.Batch != nil {
		return it.Batch.SoldAt
	}
	return it.Lot.BoughtAt
}
