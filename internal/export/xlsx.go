package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"kakeibo/internal/core"
)

const sheetName = "取引"

var xlsxHeaders = []string{"日付", "種類", "金額", "通貨", "カテゴリ", "メモ", "収支", "表示"}

// XLSXEncoder writes a single-sheet workbook.
type XLSXEncoder struct{}

func (XLSXEncoder) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (XLSXEncoder) Extension() string { return "xlsx" }

func (XLSXEncoder) Encode(w io.Writer, txs []core.Transaction) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("drop default sheet: %w", err)
	}

	for i, h := range xlsxHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return err
		}
	}

	for i, tx := range sorted(txs) {
		row := i + 2
		typeText := "支出"
		if tx.Type == core.Income {
			typeText = "収入"
		}
		values := []any{
			tx.Date.String(),
			typeText,
			tx.Amount.InexactFloat64(),
			tx.Currency,
			tx.Category,
			tx.Description,
			tx.Signed().InexactFloat64(),
			core.FormatAmount(tx.Currency, tx.Amount),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return err
			}
		}
	}

	widths := map[string]float64{"A": 12, "B": 8, "C": 12, "D": 8, "E": 15, "F": 30, "G": 12, "H": 14}
	for col, width := range widths {
		if err := f.SetColWidth(sheetName, col, col, width); err != nil {
			return err
		}
	}

	return f.Write(w)
}
