// Package output renders query results as a text table, JSON Lines or CSV.
package output

import (
	"fmt"
	"io"

	"github.com/razeghi71/kqlmock/table"
)

// Formatter writes rows in one output format. Columns fix the field order;
// a column a row lacks is written as null.
type Formatter interface {
	Format(columns []string, rows []*table.Row) error
}

// Names lists the formats New accepts.
var Names = []string{"table", "json", "jsonl", "csv"}

// New returns the formatter called name, writing to w.
func New(name string, w io.Writer) (Formatter, error) {
	switch name {
	case "", "table":
		return NewTableFormatter(w), nil
	case "json", "jsonl":
		return NewJSONFormatter(w), nil
	case "csv":
		return NewCSVFormatter(w), nil
	}
	return nil, fmt.Errorf("unsupported format %q (supported: table, json, jsonl, csv)", name)
}
