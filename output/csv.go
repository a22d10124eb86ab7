package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/razeghi71/kqlmock/table"
)

// CSVFormatter writes a header line and one record per row. Nulls are empty
// cells and lists are JSON arrays.
type CSVFormatter struct {
	writer io.Writer

	// Raw turns off the spreadsheet formula guard, for files that are read
	// back by the loader rather than opened in a spreadsheet.
	Raw bool
}

func NewCSVFormatter(w io.Writer) *CSVFormatter {
	return &CSVFormatter{writer: w}
}

func (f *CSVFormatter) Format(columns []string, rows []*table.Row) error {
	w := csv.NewWriter(f.writer)
	if len(columns) > 0 {
		if err := w.Write(columns); err != nil {
			return err
		}
	}
	for _, row := range rows {
		record := make([]string, len(columns))
		for i, col := range columns {
			record[i] = formatCell(row.Get(col), f.Raw)
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV writer: %w", err)
	}
	return nil
}

func formatCell(v table.Value, raw bool) string {
	switch v.Type {
	case table.TypeNull:
		return ""
	case table.TypeList:
		b, err := json.Marshal(v.Native())
		if err != nil {
			return v.AsString()
		}
		return string(b)
	case table.TypeString:
		// keep spreadsheets from evaluating the cell as a formula
		if s := v.Str; !raw && s != "" && strings.ContainsRune("=+-@\t\r", rune(s[0])) {
			return "'" + s
		}
		return v.Str
	}
	return v.AsString()
}
