package telebotConverter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/KotFed0t/gold_ledger_bot/internal/model"
	"github.com/KotFed0t/gold_ledger_bot/internal/model/tg/tgCallback"
	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v4"
)

const dateLayout = "02.01.2006"

func formatMoney(v decimal.Decimal) string {
	return v.Round(2).String()
}

func formatGrams(v decimal.Decimal) string {
	return v.String()
}

func PortfolioResponse(page model.PortfolioPage) (text string, markup *tele.ReplyMarkup) {
	markup = &tele.ReplyMarkup{}
	var sb strings.Builder

	// Сводка портфеля
	sb.WriteString("🏦 Золотой портфель\n")
	sb.WriteString(fmt.Sprintf("💰 Прибыль: %s ₽\n", formatMoney(page.TotalProfit)))
	sb.WriteString(fmt.Sprintf("⚖️ В активе: %s г\n", formatGrams(page.ActiveGrams)))

	if page.GoldPrice != nil {
		sb.WriteString(fmt.Sprintf("💱 Золото: %s ₽/г (на %s)\n", formatMoney(page.GoldPrice.PricePerGram), page.GoldPrice.UpdatedAt.Format("02.01.2006 15:04")))
	}
	if page.ActiveValue != nil {
		sb.WriteString(fmt.Sprintf("📈 Стоимость актива: %s ₽\n", formatMoney(*page.ActiveValue)))
	}

	if len(page.Items) == 0 {
		sb.WriteString("\nПока нет ни одной покупки. Добавьте первый лот.\n")
	} else {
		sb.WriteString("\n📋 Лоты и пакеты:\n\n")
	}

	itemBtns := make([]tele.Btn, 0, len(page.Items))
	selectBtns := make([]tele.Btn, 0, len(page.Items))

	for i, item := range page.Items {
		num := i + 1

		if item.Batch != nil {
			batch := item.Batch
			status := "🟡 открыт"
			if batch.FullySold {
				status = "✅ закрыт"
			}
			sb.WriteString(fmt.Sprintf(
				"%d. 📦 Пакет от %s: %s г из %d лотов по %s ₽/г, прибыль %s ₽ (%s)\n",
				num, batch.SoldAt.Format(dateLayout), formatGrams(batch.TotalGrams), len(batch.Lots),
				formatMoney(batch.PricePerGram), formatMoney(batch.TotalProfit), status,
			))
			itemBtns = append(itemBtns, markup.Data("📦 "+strconv.Itoa(num), tgCallback.BatchPrefix+batch.BatchID))
			continue
		}

		lot := item.Lot
		if lot.FullySold {
			sb.WriteString(fmt.Sprintf(
				"%d. ✅ %s г по %s ₽/г от %s, прибыль %s ₽\n",
				num, formatGrams(lot.Grams), formatMoney(lot.PricePerGram), lot.BoughtAt.Format(dateLayout), formatMoney(lot.Profit),
			))
		} else {
			mark := ""
			if lot.Selected {
				mark = " ☑️"
			}
			sb.WriteString(fmt.Sprintf(
				"%d. 🟡 остаток %s из %s г по %s ₽/г от %s%s\n",
				num, formatGrams(lot.Remaining), formatGrams(lot.Grams), formatMoney(lot.PricePerGram), lot.BoughtAt.Format(dateLayout), mark,
			))
		}

		itemBtns = append(itemBtns, markup.Data(strconv.Itoa(num), tgCallback.LotPrefix+lot.ID))

		if lot.Selectable {
			label := "⬜️ " + strconv.Itoa(num)
			if lot.Selected {
				label = "☑️ " + strconv.Itoa(num)
			}
			selectBtns = append(selectBtns, markup.Data(label, tgCallback.ToggleSelectPrefix+lot.ID))
		}
	}

	if len(selectBtns) > 0 && page.SelectedCount == 0 {
		sb.WriteString("\nОтметьте лоты кнопками ⬜️, чтобы продать несколько одним пакетом.\n")
	}

	rows := make([]tele.Row, 0, 6)
	rows = append(rows, markup.Row(markup.Data("➕ Добавить лот", tgCallback.AddLot)))

	if len(itemBtns) > 0 {
		rows = append(rows, markup.Row(itemBtns...))
	}
	if len(selectBtns) > 0 {
		rows = append(rows, markup.Row(selectBtns...))
	}

	if page.SelectedCount > 0 {
		batchSellLabel := fmt.Sprintf("💸 Продать выбранные (%d, %s г)", page.SelectedCount, formatGrams(page.SelectedGrams))
		rows = append(rows,
			markup.Row(markup.Data(batchSellLabel, tgCallback.BatchSell)),
			markup.Row(markup.Data("♻️ Сбросить выбор", tgCallback.ClearSelection)),
		)
	}

	paginationBtns := make([]tele.Btn, 0, 2)
	if page.CurPage > 0 {
		paginationBtns = append(paginationBtns, markup.Data("⬅️ предыдущая", tgCallback.PagePrefix+strconv.Itoa(page.CurPage-1)))
	}
	if page.HasNextPage {
		paginationBtns = append(paginationBtns, markup.Data("следующая ➡️", tgCallback.PagePrefix+strconv.Itoa(page.CurPage+1)))
	}
	if len(paginationBtns) > 0 {
		rows = append(rows, markup.Row(paginationBtns...))
	}

	rows = append(rows, markup.Row(
		markup.Data("📈 Прибыль", tgCallback.ProfitHistory),
		markup.Data("📥 Экспорт в Excel", tgCallback.Export),
	))

	markup.Inline(rows...)

	return sb.String(), markup
}

func LotDetailsResponse(lot model.LotSummary) (text string, markup *tele.ReplyMarkup) {
	markup = &tele.ReplyMarkup{}
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("🧱 Лот от %s\n", lot.BoughtAt.Format(dateLayout)))
	sb.WriteString(fmt.Sprintf("⚖️ Вес: %s г\n", formatGrams(lot.Grams)))
	sb.WriteString(fmt.Sprintf("💵 Цена покупки: %s ₽/г\n", formatMoney(lot.PricePerGram)))
	sb.WriteString(fmt.Sprintf("📉 Остаток: %s г\n", formatGrams(lot.Remaining)))
	sb.WriteString(fmt.Sprintf("💰 Прибыль: %s ₽\n", formatMoney(lot.Profit)))
	if lot.FullySold {
		sb.WriteString("Статус: ✅ продан полностью\n")
	} else {
		sb.WriteString("Статус: 🟡 в активе\n")
	}
	if lot.Notes != nil {
		sb.WriteString(fmt.Sprintf("📝 %s\n", *lot.Notes))
	}

	saleBtns := make([]tele.Btn, 0, len(lot.Sales)*2)
	hasBatchSale := false

	if len(lot.Sales) > 0 {
		sb.WriteString("\n💸 Продажи:\n")
		for i, sale := range lot.Sales {
			num := i + 1

			line := fmt.Sprintf("%d. %s — %s г по %s ₽/г", num, sale.SoldAt.Format(dateLayout), formatGrams(sale.Grams), formatMoney(sale.PricePerGram))
			if !sale.Fee.IsZero() {
				line += fmt.Sprintf(", комиссия %s ₽", formatMoney(sale.Fee))
			}
			if sale.BatchID != nil {
				line += " 📦"
				hasBatchSale = true
			}
			if sale.Notes != nil {
				line += fmt.Sprintf(" (%s)", *sale.Notes)
			}
			sb.WriteString(line + "\n")

			if sale.BatchID == nil {
				saleBtns = append(saleBtns,
					markup.Data("✏️ "+strconv.Itoa(num), tgCallback.EditSalePrefix+sale.ID),
					markup.Data("🗑 "+strconv.Itoa(num), tgCallback.DeleteSalePrefix+sale.ID),
				)
			}
		}

		if hasBatchSale {
			sb.WriteString("\n📦 — пакетная продажа, правится и удаляется только целым пакетом.\n")
		}
	}

	rows := make([]tele.Row, 0, 4)

	actionBtns := make([]tele.Btn, 0, 3)
	if !lot.FullySold {
		actionBtns = append(actionBtns, markup.Data("💸 Продать", tgCallback.SellLotPrefix+lot.ID))
	}
	actionBtns = append(actionBtns,
		markup.Data("✏️ Изменить", tgCallback.EditLotPrefix+lot.ID),
		markup.Data("🗑 Удалить", tgCallback.DeleteLotPrefix+lot.ID),
	)
	rows = append(rows, markup.Row(actionBtns...))

	if len(saleBtns) > 0 {
		rows = append(rows, markup.Row(saleBtns...))
	}

	rows = append(rows, markup.Row(markup.Data("⬅️ К портфелю", tgCallback.BackToPortfolio)))

	markup.Inline(rows...)

	return sb.String(), markup
}

func BatchDetailsResponse(batch model.BatchView) (text string, markup *tele.ReplyMarkup) {
	markup = &tele.ReplyMarkup{}
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("📦 Пакетная продажа от %s\n", batch.SoldAt.Format(dateLayout)))
	sb.WriteString(fmt.Sprintf("⚖️ Вес лотов: %s г\n", formatGrams(batch.TotalGrams)))
	sb.WriteString(fmt.Sprintf("💵 Средняя цена покупки: %s ₽/г\n", formatMoney(batch.AvgBuyPrice)))
	sb.WriteString(fmt.Sprintf("💱 Цена продажи: %s ₽/г\n", formatMoney(batch.PricePerGram)))
	if !batch.TotalFee.IsZero() {
		sb.WriteString(fmt.Sprintf("🧾 Комиссия: %s ₽\n", formatMoney(batch.TotalFee)))
	}
	sb.WriteString(fmt.Sprintf("💰 Прибыль пакета: %s ₽\n", formatMoney(batch.TotalProfit)))
	if batch.FullySold {
		sb.WriteString("Статус: ✅ закрыт\n")
	} else {
		sb.WriteString("Статус: 🟡 часть лотов снова в активе\n")
	}
	if batch.Notes != nil {
		sb.WriteString(fmt.Sprintf("📝 %s\n", *batch.Notes))
	}

	sb.WriteString(fmt.Sprintf("\n🧱 Лоты (%d):\n", len(batch.Lots)))
	lotBtns := make([]tele.Btn, 0, len(batch.Lots))
	for i, lot := range batch.Lots {
		num := i + 1
		sb.WriteString(fmt.Sprintf("%d. %s г по %s ₽/г от %s\n", num, formatGrams(lot.Grams), formatMoney(lot.PricePerGram), lot.BoughtAt.Format(dateLayout)))
		lotBtns = append(lotBtns, markup.Data(strconv.Itoa(num), tgCallback.LotPrefix+lot.ID))
	}

	markup.Inline(
		markup.Row(lotBtns...),
		markup.Row(markup.Data("🗑 Удалить пакет", tgCallback.DeleteBatchPrefix+batch.BatchID)),
		markup.Row(markup.Data("⬅️ К портфелю", tgCallback.BackToPortfolio)),
	)

	return sb.String(), markup
}

func DeleteLotConfirmation(lot model.LotSummary) (text string, markup *tele.ReplyMarkup) {
	markup = &tele.ReplyMarkup{}

	text = fmt.Sprintf(
		"Удалить лот от %s (%s г по %s ₽/г)?\nВсе его продажи тоже удалятся.",
		lot.BoughtAt.Format(dateLayout), formatGrams(lot.Grams), formatMoney(lot.PricePerGram),
	)

	markup.Inline(
		markup.Row(
			markup.Data("↩️ Отмена", tgCallback.LotPrefix+lot.ID),
			markup.Data("🗑 Удалить", tgCallback.ConfirmDeleteLotPrefix+lot.ID),
		),
	)

	return text, markup
}

func DeleteSaleConfirmation(lot model.LotSummary, sale model.Sale) (text string, markup *tele.ReplyMarkup) {
	markup = &tele.ReplyMarkup{}

	text = fmt.Sprintf(
		"Удалить продажу от %s (%s г по %s ₽/г)?\nОстаток лота снова станет доступен.",
		sale.SoldAt.Format(dateLayout), formatGrams(sale.Grams), formatMoney(sale.PricePerGram),
	)

	markup.Inline(
		markup.Row(
			markup.Data("↩️ Отмена", tgCallback.LotPrefix+lot.ID),
			markup.Data("🗑 Удалить", tgCallback.ConfirmDeleteSalePrefix+sale.ID),
		),
	)

	return text, markup
}

func DeleteBatchConfirmation(batch model.BatchView) (text string, markup *tele.ReplyMarkup) {
	markup = &tele.ReplyMarkup{}

	text = fmt.Sprintf(
		"Удалить пакетную продажу от %s (%s г, %d лотов)?\n\n«Только продажи» вернет лоты в актив, «вместе с лотами» удалит и сами лоты.",
		batch.SoldAt.Format(dateLayout), formatGrams(batch.TotalGrams), len(batch.Lots),
	)

	markup.Inline(
		markup.Row(markup.Data("🗑 Только продажи", tgCallback.ConfirmDeleteBatchPrefix+batch.BatchID)),
		markup.Row(markup.Data("🗑 Вместе с лотами", tgCallback.ConfirmDeleteBatchAndLotsPrefix+batch.BatchID)),
		markup.Row(markup.Data("↩️ Отмена", tgCallback.BatchPrefix+batch.BatchID)),
	)

	return text, markup
}

func AddLotPrompt() (text string, markup *tele.ReplyMarkup) {
	text = "➕ Новая покупка\n\n" +
		"Отправьте сообщением: <вес_г> <цена_за_грамм> [дата] [заметка]\n" +
		"Дата в формате ДД.ММ.ГГГГ, по умолчанию сегодня.\n\n" +
		"Например: 10 5000 12.01.2024 слиток из банка"

	return text, CancelMarkup()
}

func EditLotPrompt(lot model.LotSummary) (text string, markup *tele.ReplyMarkup) {
	text = fmt.Sprintf(
		"✏️ Изменение лота от %s\n"+
			"Сейчас: %s г по %s ₽/г\n\n"+
			"Отправьте новые значения: <вес_г> <цена_за_грамм> [дата] [заметка]\n"+
			"Лот заменяется целиком, вес нельзя сделать меньше уже проданного.",
		lot.BoughtAt.Format(dateLayout), formatGrams(lot.Grams), formatMoney(lot.PricePerGram),
	)

	return text, CancelMarkup()
}

func SellLotPrompt(lot model.LotSummary) (text string, markup *tele.ReplyMarkup) {
	text = fmt.Sprintf(
		"💸 Продажа лота от %s (остаток %s г)\n\n"+
			"Отправьте: <вес_г> <цена_за_грамм> [комиссия] [дата] [заметка]\n"+
			"Вместо веса можно написать «всё», чтобы продать весь остаток.\n\n"+
			"Например: всё 7100 150 20.05.2024 продал в ломбарде",
		lot.BoughtAt.Format(dateLayout), formatGrams(lot.Remaining),
	)

	return text, CancelMarkup()
}

func EditSalePrompt(sale model.Sale) (text string, markup *tele.ReplyMarkup) {
	text = fmt.Sprintf(
		"✏️ Изменение продажи от %s\n"+
			"Сейчас: %s г по %s ₽/г, комиссия %s ₽\n\n"+
			"Отправьте новые значения: <вес_г> <цена_за_грамм> [комиссия] [дата] [заметка]\n"+
			"Запись заменяется целиком.",
		sale.SoldAt.Format(dateLayout), formatGrams(sale.Grams), formatMoney(sale.PricePerGram), formatMoney(sale.Fee),
	)

	return text, CancelMarkup()
}

// в чат влезает только хвост истории, полная версия всегда есть в экспорте
const profitHistoryLimit = 20

func ProfitHistoryResponse(points []model.ProfitPoint) (text string, markup *tele.ReplyMarkup) {
	markup = &tele.ReplyMarkup{}
	markup.Inline(markup.Row(markup.Data("⬅️ К портфелю", tgCallback.BackToPortfolio)))

	if len(points) == 0 {
		return "Продаж пока не было, прибыль появится после первой.", markup
	}

	start := 0
	if len(points) > profitHistoryLimit {
		start = len(points) - profitHistoryLimit
	}

	var sb strings.Builder
	sb.WriteString("📈 Прибыль по продажам\n")
	if start > 0 {
		sb.WriteString(fmt.Sprintf("(последние %d из %d)\n", profitHistoryLimit, len(points)))
	}
	sb.WriteString("\n")

	running := decimal.Zero
	for i, point := range points {
		running = running.Add(point.Profit)
		if i < start {
			continue
		}
		sb.WriteString(fmt.Sprintf("%s: %s ₽ (итог %s ₽)\n", point.SoldAt.Format(dateLayout), formatMoney(point.Profit), formatMoney(running)))
	}

	sb.WriteString(fmt.Sprintf("\n💰 Всего: %s ₽", formatMoney(running)))

	return sb.String(), markup
}

func BatchSellPrompt(selectedCount int, selectedGrams decimal.Decimal) (text string, markup *tele.ReplyMarkup) {
	text = fmt.Sprintf(
		"📦 Пакетная продажа: %d лотов, всего %s г\n\n"+
			"Отправьте: <цена_за_грамм> [общая_комиссия] [дата] [заметка]\n"+
			"Остатки всех выбранных лотов будут проданы по этой цене, комиссия разделится между лотами.",
		selectedCount, formatGrams(selectedGrams),
	)

	return text, CancelMarkup()
}

func CancelMarkup() *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	markup.Inline(markup.Row(markup.Data("✖️ Отмена", tgCallback.CancelInput)))
	return markup
}
