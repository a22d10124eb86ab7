package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/razeghi71/kqlmock/output"
	"github.com/razeghi71/kqlmock/registry"
	"github.com/razeghi71/kqlmock/table"
)

var schemaColumns = []string{"table", "column", "type"}

func schemaRows(schemas []registry.Schema) []*table.Row {
	var rows []*table.Row
	for _, s := range schemas {
		for _, c := range s.Columns {
			rows = append(rows, table.RowOf("table", s.Table, "column", c.Name, "type", c.Type))
		}
	}
	return rows
}

// dump writes each table to dir/<name>.<format> and returns the paths.
func dump(reg *registry.Registry, dir, format string) ([]string, error) {
	format = strings.ToLower(format)
	if format != "jsonl" && format != "csv" {
		return nil, fmt.Errorf("unsupported dump format %q (supported: jsonl, csv)", format)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create %s: %w", dir, err)
	}

	var written []string
	for _, name := range reg.Names() {
		t, err := reg.Table(name)
		if err != nil {
			return written, err
		}
		path := filepath.Join(dir, t.Name+"."+format)
		if err := writeTable(path, format, t); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func writeTable(path, format string, t *table.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create %s: %w", path, err)
	}
	var formatter output.Formatter
	if format == "csv" {
		// the loader reads cells back verbatim
		c := output.NewCSVFormatter(f)
		c.Raw = true
		formatter = c
	} else {
		formatter = output.NewJSONFormatter(f)
	}
	if err := formatter.Format(t.Columns, t.Rows); err != nil {
		f.Close()
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	return f.Close()
}
