package xlsxGenerator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/KotFed0t/gold_ledger_bot/internal/model"
	"github.com/KotFed0t/gold_ledger_bot/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const dateLayout = "02.01.2006"

type XLSXGenerator struct{}

func New() *XLSXGenerator {
	return &XLSXGenerator{}
}

// Generate собирает xlsx-отчёт по реестру одного чата: листы «Портфель»,
// «Партии» и «Прибыль».
func (g *XLSXGenerator) Generate(ctx context.Context, report model.LedgerReport) (fileBytes []byte, fileExtension string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "XLSXGenerator.Generate"

	if len(report.Lots) == 0 {
		return nil, "", errors.New("empty ledger")
	}

	slog.Debug("Generate start", slog.String("rqID", rqID), slog.String("op", op))

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("got error while closing file", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}()

	if err = g.fillLotsSheet(f, report); err != nil {
		slog.Error("got error while filling lots sheet", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	if err = g.fillBatchesSheet(f, report.Batches); err != nil {
		slog.Error("got error while filling batches sheet", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	if err = g.fillProfitSheet(f, report.ProfitPoints); err != nil {
		slog.Error("got error while filling profit sheet", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	// Удаляем лист по умолчанию "Sheet1"
	if err := f.DeleteSheet("Sheet1"); err != nil {
		slog.Error("got error while deleting Sheet1", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		slog.Error("got error while Saving file to bytes buffer", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	slog.Debug("Generate completed", slog.String("rqID", rqID), slog.String("op", op))

	return buf.Bytes(), ".xlsx", nil
}

func (g *XLSXGenerator) newHeaderStyle(f *excelize.File, color string) (int, error) {
	return f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Font: &excelize.Font{
			Bold: true,
			Size: 11,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{color},
		},
	})
}

func (g *XLSXGenerator) fillLotsSheet(f *excelize.File, report model.LedgerReport) error {
	sheetName := "Портфель"
	if _, err := f.NewSheet(sheetName); err != nil {
		return err
	}

	if err := f.MergeCell(sheetName, "A1", "G1"); err != nil {
		return err
	}
	f.SetCellValue(sheetName, "A1", "Лоты")

	styleID, err := g.newHeaderStyle(f, "#cfe2f3") // светло-голубой
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetName, "A1", "A1", styleID); err != nil {
		return fmt.Errorf("ошибка применения стиля: %w", err)
	}

	_ = f.SetCellStr(sheetName, "A2", "дата покупки")
	_ = f.SetCellStr(sheetName, "B2", "вес, г")
	_ = f.SetCellStr(sheetName, "C2", "цена за г")
	_ = f.SetCellStr(sheetName, "D2", "остаток, г")
	_ = f.SetCellStr(sheetName, "E2", "прибыль")
	_ = f.SetCellStr(sheetName, "F2", "статус")
	_ = f.SetCellStr(sheetName, "G2", "заметка")

	for i, lot := range report.Lots {
		row := i + 3
		_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", row), lot.BoughtAt.Format(dateLayout))
		_ = f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), lot.Grams.InexactFloat64())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), lot.PricePerGram.InexactFloat64())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), lot.Remaining.InexactFloat64())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), lot.Profit.InexactFloat64())
		status := "открыт"
		if lot.FullySold {
			status = "продан"
		}
		_ = f.SetCellStr(sheetName, fmt.Sprintf("F%d", row), status)
		if lot.Notes != nil {
			_ = f.SetCellStr(sheetName, fmt.Sprintf("G%d", row), *lot.Notes)
		}
	}

	// итоги
	rowNum := len(report.Lots) + 5

	if err := f.MergeCell(sheetName, fmt.Sprintf("A%d", rowNum), fmt.Sprintf("B%d", rowNum)); err != nil {
		return err
	}
	f.SetCellValue(sheetName, fmt.Sprintf("A%d", rowNum), "Итоги")

	styleID, err = g.newHeaderStyle(f, "#d9ead3") // светло-зеленый
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetName, fmt.Sprintf("A%d", rowNum), fmt.Sprintf("A%d", rowNum), styleID); err != nil {
		return fmt.Errorf("ошибка применения стиля: %w", err)
	}

	rowNum++
	_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", rowNum), "общая прибыль")
	_ = f.SetCellStr(sheetName, fmt.Sprintf("B%d", rowNum), "в активе, г")
	rowNum++
	_ = f.SetCellValue(sheetName, fmt.Sprintf("A%d", rowNum), report.Stats.TotalProfit.InexactFloat64())
	_ = f.SetCellValue(sheetName, fmt.Sprintf("B%d", rowNum), report.Stats.ActiveGrams.InexactFloat64())

	return nil
}

func (g *XLSXGenerator) fillBatchesSheet(f *excelize.File, batches []model.BatchView) error {
	sheetName := "Партии"
	if _, err := f.NewSheet(sheetName); err != nil {
		return err
	}

	if err := f.MergeCell(sheetName, "A1", "H1"); err != nil {
		return err
	}
	f.SetCellValue(sheetName, "A1", "Пакетные продажи")

	styleID, err := g.newHeaderStyle(f, "#f9cb9c") // светло-оранжевый
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetName, "A1", "A1", styleID); err != nil {
		return fmt.Errorf("ошибка применения стиля: %w", err)
	}

	_ = f.SetCellStr(sheetName, "A2", "дата продажи")
	_ = f.SetCellStr(sheetName, "B2", "лотов")
	_ = f.SetCellStr(sheetName, "C2", "вес, г")
	_ = f.SetCellStr(sheetName, "D2", "ср. цена покупки")
	_ = f.SetCellStr(sheetName, "E2", "цена продажи")
	_ = f.SetCellStr(sheetName, "F2", "комиссия")
	_ = f.SetCellStr(sheetName, "G2", "прибыль")
	_ = f.SetCellStr(sheetName, "H2", "статус")

	for i, batch := range batches {
		row := i + 3
		_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", row), batch.SoldAt.Format(dateLayout))
		_ = f.SetCellInt(sheetName, fmt.Sprintf("B%d", row), int64(len(batch.Lots)))
		_ = f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), batch.TotalGrams.InexactFloat64())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), batch.AvgBuyPrice.InexactFloat64())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), batch.PricePerGram.InexactFloat64())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), batch.TotalFee.InexactFloat64())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), batch.TotalProfit.InexactFloat64())
		status := "открыт"
		if batch.FullySold {
			status = "закрыт"
		}
		_ = f.SetCellStr(sheetName, fmt.Sprintf("H%d", row), status)
	}

	return nil
}

func (g *XLSXGenerator) fillProfitSheet(f *excelize.File, points []model.ProfitPoint) error {
	sheetName := "Прибыль"
	if _, err := f.NewSheet(sheetName); err != nil {
		return err
	}

	if err := f.MergeCell(sheetName, "A1", "C1"); err != nil {
		return err
	}
	f.SetCellValue(sheetName, "A1", "Прибыль по продажам")

	styleID, err := g.newHeaderStyle(f, "#cccccc") // серый
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetName, "A1", "A1", styleID); err != nil {
		return fmt.Errorf("ошибка применения стиля: %w", err)
	}

	_ = f.SetCellStr(sheetName, "A2", "дата")
	_ = f.SetCellStr(sheetName, "B2", "прибыль")
	_ = f.SetCellStr(sheetName, "C2", "нарастающим итогом")

	total := decimal.Zero
	for i, point := range points {
		row := i + 3
		total = total.Add(point.Profit)
		_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", row), point.SoldAt.Format(dateLayout))
		_ = f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), point.Profit.InexactFloat64())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), total.InexactFloat64())
	}

	return nil
}
