package output

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/razeghi71/kqlmock/table"
)

// TableFormatter draws an aligned text table followed by a row count.
type TableFormatter struct {
	writer io.Writer
}

func NewTableFormatter(w io.Writer) *TableFormatter {
	return &TableFormatter{writer: w}
}

func (f *TableFormatter) Format(columns []string, rows []*table.Row) error {
	if len(columns) == 0 {
		_, err := fmt.Fprintln(f.writer, "(0 rows)")
		return err
	}

	tw := tablewriter.NewWriter(f.writer)
	tw.SetHeader(columns)
	tw.SetAutoFormatHeaders(false)
	tw.SetAutoWrapText(false)
	for _, row := range rows {
		cells := make([]string, len(columns))
		for i, col := range columns {
			cells[i] = row.Get(col).AsString()
		}
		tw.Append(cells)
	}
	tw.Render()

	_, err := fmt.Fprintf(f.writer, "(%d rows)\n", len(rows))
	return err
}
