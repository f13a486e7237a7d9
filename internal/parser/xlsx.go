package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/KaramelBytes/dashloom-cli/internal/table"
)

type xlsxParser struct{}

func (xlsxParser) CanParse(filename string) bool {
	name := strings.ToLower(filename)
	return strings.HasSuffix(name, ".xlsx") || strings.HasSuffix(name, ".xlsm")
}

// Parse returns one RawTable per sheet that holds at least one row, named
// after the sheet.
func (xlsxParser) Parse(filename string, r io.Reader) ([]table.RawTable, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", filename, err)
	}
	defer f.Close()

	var out []table.RawTable
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}
		grid := make([][]string, len(rows))
		for i, row := range rows {
			grid[i] = trimCells(row)
		}
		out = append(out, table.RawTable{ID: "sheet-" + uuid.NewString(), Name: sheet, Grid: grid})
	}
	return out, nil
}
