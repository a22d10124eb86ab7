package output

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/razeghi71/kqlmock/table"
)

// JSONFormatter writes one JSON object per row, keys in column order.
type JSONFormatter struct {
	writer io.Writer
}

func NewJSONFormatter(w io.Writer) *JSONFormatter {
	return &JSONFormatter{writer: w}
}

func (f *JSONFormatter) Format(columns []string, rows []*table.Row) error {
	bw := bufio.NewWriter(f.writer)
	var buf bytes.Buffer
	for _, row := range rows {
		buf.Reset()
		if err := encodeRow(&buf, columns, row); err != nil {
			return err
		}
		buf.WriteByte('\n')
		if _, err := bw.Write(buf.Bytes()); err != nil {
			return fmt.Errorf("failed to write JSON line: %w", err)
		}
	}
	return bw.Flush()
}

// encodeRow writes row as an object. encoding/json sorts map keys, so the
// object is assembled field by field.
func encodeRow(buf *bytes.Buffer, columns []string, row *table.Row) error {
	buf.WriteByte('{')
	for i, col := range columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return err
		}
		val, err := json.Marshal(row.Get(col).Native())
		if err != nil {
			return fmt.Errorf("failed to encode column %q: %w", col, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return nil
}
