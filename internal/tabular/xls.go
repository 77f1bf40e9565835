package tabular

import (
	"fmt"
	"io"

	"github.com/extrame/xls"
)

// ReadXLS reads one sheet of a legacy Excel workbook into a row matrix.
func ReadXLS(rs io.ReadSeeker, sheet int) ([][]string, error) {
	book, err := xls.OpenReader(rs, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open xls: %w", err)
	}
	if sheet < 0 || sheet >= book.NumSheets() {
		return nil, fmt.Errorf("sheet %d out of range (workbook has %d)", sheet, book.NumSheets())
	}
	ws := book.GetSheet(sheet)
	if ws == nil {
		return nil, fmt.Errorf("sheet %d is empty", sheet)
	}
	var rows [][]string
	for i := 0; i <= int(ws.MaxRow); i++ {
		row := ws.Row(i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, row.LastCol()+1)
		for c := range cells {
			cells[c] = row.Col(c)
		}
		rows = append(rows, cells)
	}
	return normalizeRows(rows), nil
}
