package export

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"kakeibo/internal/core"
)

func sample() []core.Transaction {
	return []core.Transaction{
		{ID: "2", Date: core.NewDate(2024, 3, 20), Type: core.Income, Amount: decimal.NewFromInt(250000), Currency: "JPY", Category: "給料"},
		{ID: "1", Date: core.NewDate(2024, 3, 2), Type: core.Expense, Amount: decimal.RequireFromString("12.5"), Currency: "USD", Category: "交通費", Description: "taxi"},
	}
}

func TestForFormat(t *testing.T) {
	tests := []struct {
		in      string
		wantExt string
		wantErr bool
	}{
		{"yaml", "yaml", false},
		{"", "yaml", false},
		{"XLSX", "xlsx", false},
		{"csv", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			enc, err := ForFormat(tt.in)
			if tt.wantErr {
				if !errors.Is(err, core.ErrValidationFailed) {
					t.Errorf("error = %v, want ErrValidationFailed", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if enc.Extension() != tt.wantExt {
				t.Errorf("Extension() = %q, want %q", enc.Extension(), tt.wantExt)
			}
		})
	}
}

func TestFilename(t *testing.T) {
	got := Filename(XLSXEncoder{}, time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC))
	if got != "kakeibo_20240305_140709.xlsx" {
		t.Errorf("Filename() = %q", got)
	}
}

func TestYAMLEncoder(t *testing.T) {
	var buf bytes.Buffer
	if err := (YAMLEncoder{}).Encode(&buf, sample()); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	var rows []map[string]string
	if err := yaml.Unmarshal(buf.Bytes(), &rows); err != nil {
		t.Fatalf("output is not YAML: %v\n%s", err, buf.String())
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0]["id"] != "1" || rows[0]["amount"] != "12.50" {
		t.Errorf("first row = %v, want the USD expense with two decimals", rows[0])
	}
	if rows[1]["amount"] != "250000" {
		t.Errorf("JPY amount = %q, want 250000", rows[1]["amount"])
	}
	if _, ok := rows[1]["description"]; ok {
		t.Error("empty description should be omitted")
	}
}

func TestYAMLEncoder_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := (YAMLEncoder{}).Encode(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("empty export = %q, want []", buf.String())
	}
}

func TestXLSXEncoder(t *testing.T) {
	var buf bytes.Buffer
	if err := (XLSXEncoder{}).Encode(&buf, sample()); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("output is not a workbook: %v", err)
	}
	defer f.Close()

	if sheets := f.GetSheetList(); len(sheets) != 1 || sheets[0] != sheetName {
		t.Errorf("sheets = %v, want [%s]", sheets, sheetName)
	}
	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}
	if rows[0][0] != "日付" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][0] != "2024-03-02" || rows[1][1] != "支出" {
		t.Errorf("first data row = %v", rows[1])
	}
	if len(rows[1]) != len(xlsxHeaders) {
		t.Fatalf("first data row has %d cells, want %d", len(rows[1]), len(xlsxHeaders))
	}
	if rows[1][6] != "-12.5" || rows[1][7] != "$12.50" {
		t.Errorf("expense signed/display = %q/%q, want -12.5/$12.50", rows[1][6], rows[1][7])
	}
	if rows[2][6] != "250000" || rows[2][7] != "¥250000" {
		t.Errorf("income signed/display = %q/%q, want 250000/¥250000", rows[2][6], rows[2][7])
	}
	if rows[2][1] != "収入" {
		t.Errorf("second data row type = %q, want 収入", rows[2][1])
	}
}
