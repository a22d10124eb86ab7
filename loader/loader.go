// Package loader reads fixture tables from CSV, JSON, JSON Lines, Avro and
// Parquet files.
package loader

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	goavro "github.com/linkedin/goavro/v2"
	"github.com/parquet-go/parquet-go"
	"golang.org/x/sync/errgroup"

	"github.com/razeghi71/kqlmock/table"
)

var extensions = map[string]func(name, filename string) (*table.Table, error){
	".csv":     loadCSV,
	".json":    loadJSON,
	".jsonl":   loadJSONL,
	".avro":    loadAvro,
	".parquet": loadParquet,
}

// Supported reports whether Load can read filename.
func Supported(filename string) bool {
	_, ok := extensions[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// TableName is the file base name without its extension.
func TableName(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Load reads a file and returns a Table named after it.
func Load(filename string) (*table.Table, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	load, ok := extensions[ext]
	if !ok {
		return nil, fmt.Errorf("unsupported file format %q (supported: .csv, .json, .jsonl, .avro, .parquet)", ext)
	}
	return load(TableName(filename), filename)
}

// LoadDir loads every supported file in dir, concurrently, and returns the
// tables sorted by name. Subdirectories and other files are ignored.
func LoadDir(ctx context.Context, dir string) ([]*table.Table, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot read directory %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && Supported(e.Name()) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}

	tables := make([]*table.Table, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, f := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			t, err := Load(f)
			if err != nil {
				return err
			}
			tables[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })
	return tables, nil
}

func loadCSV(name, filename string) (*table.Table, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("cannot open %s: %w", filename, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("cannot read CSV header from %s: %w", filename, err)
	}

	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(h)
	}

	t := table.NewTable(name, columns)

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV row in %s: %w", filename, err)
		}

		vals := make([]table.Value, len(columns))
		for i := range columns {
			if i < len(record) {
				vals[i] = parseValue(strings.TrimSpace(record[i]))
			} else {
				vals[i] = table.Null()
			}
		}
		t.AddRow(vals)
	}

	return t, nil
}

// parseValue infers the type of a text cell.
func parseValue(s string) table.Value {
	if s == "" || strings.EqualFold(s, "null") {
		return table.Null()
	}

	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return table.IntVal(v)
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return table.FloatVal(v)
	}

	switch strings.ToLower(s) {
	case "true":
		return table.BoolVal(true)
	case "false":
		return table.BoolVal(false)
	}

	return stringValue(s)
}

// stringValue keeps s as a string unless it reads as a timestamp.
func stringValue(s string) table.Value {
	if t, ok := table.ParseTime(s); ok {
		return table.TimeVal(t)
	}
	return table.StrVal(s)
}

func loadJSON(name, filename string) (*table.Table, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", filename, err)
	}

	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("cannot parse JSON from %s: %w (expected array of objects)", filename, err)
	}

	return buildTableFromRecords(name, records), nil
}

func loadJSONL(name, filename string) (*table.Table, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("cannot open %s: %w", filename, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var records []map[string]any
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("invalid JSON in %s on line %d: %w", filename, lineNum, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading %s: %w", filename, err)
	}

	return buildTableFromRecords(name, records), nil
}

// buildTableFromRecords collects columns in first-seen order. Object keys
// come out of encoding/json unordered, so each record's keys are sorted
// before they are merged in.
func buildTableFromRecords(name string, records []map[string]any) *table.Table {
	colSet := make(map[string]bool)
	var columns []string
	for _, rec := range records {
		keys := make([]string, 0, len(rec))
		for k := range rec {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if !colSet[k] {
				colSet[k] = true
				columns = append(columns, k)
			}
		}
	}

	t := table.NewTable(name, columns)
	for _, rec := range records {
		vals := make([]table.Value, len(columns))
		for i, col := range columns {
			vals[i] = jsonValue(rec[col])
		}
		t.AddRow(vals)
	}

	return t
}

func jsonValue(v any) table.Value {
	switch val := v.(type) {
	case nil:
		return table.Null()
	case float64:
		// JSON numbers are float64; check if it's actually an integer
		if val == float64(int64(val)) {
			return table.IntVal(int64(val))
		}
		return table.FloatVal(val)
	case string:
		return stringValue(val)
	case bool:
		return table.BoolVal(val)
	case []any:
		list := make([]table.Value, len(val))
		for i, e := range val {
			list[i] = jsonValue(e)
		}
		return table.ListVal(list)
	default:
		// nested objects are stringified
		b, _ := json.Marshal(val)
		return table.StrVal(string(b))
	}
}

func loadAvro(name, filename string) (*table.Table, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("cannot open %s: %w", filename, err)
	}
	defer f.Close()

	ocfr, err := goavro.NewOCFReader(f)
	if err != nil {
		return nil, fmt.Errorf("cannot read Avro OCF from %s: %w", filename, err)
	}

	var schemaDef struct {
		Fields []struct {
			Name string `json:"name"`
		} `json:"fields"`
	}
	if err := json.Unmarshal([]byte(ocfr.Codec().Schema()), &schemaDef); err != nil {
		return nil, fmt.Errorf("cannot parse Avro schema of %s: %w", filename, err)
	}

	columns := make([]string, len(schemaDef.Fields))
	for i, field := range schemaDef.Fields {
		columns[i] = field.Name
	}

	t := table.NewTable(name, columns)

	for ocfr.Scan() {
		datum, err := ocfr.Read()
		if err != nil {
			return nil, fmt.Errorf("error reading Avro record from %s: %w", filename, err)
		}

		rec, ok := datum.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("unexpected Avro record type %T in %s", datum, filename)
		}

		vals := make([]table.Value, len(columns))
		for i, col := range columns {
			vals[i] = nativeValue(rec[col])
		}
		t.AddRow(vals)
	}

	if err := ocfr.Err(); err != nil {
		return nil, fmt.Errorf("error reading Avro file %s: %w", filename, err)
	}

	return t, nil
}

func loadParquet(name, filename string) (*table.Table, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("cannot open %s: %w", filename, err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("cannot stat %s: %w", filename, err)
	}

	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("cannot open parquet file %s: %w", filename, err)
	}

	fields := pf.Schema().Fields()
	columns := make([]string, len(fields))
	for i, field := range fields {
		columns[i] = field.Name()
	}

	t := table.NewTable(name, columns)

	reader := parquet.NewReader(pf)
	defer reader.Close()

	for {
		rec := make(map[string]any)
		if err := reader.Read(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("error reading parquet row from %s: %w", filename, err)
		}

		vals := make([]table.Value, len(columns))
		for i, col := range columns {
			vals[i] = nativeValue(rec[col])
		}
		t.AddRow(vals)
	}

	return t, nil
}

// nativeValue converts a decoded Avro or Parquet datum.
func nativeValue(v any) table.Value {
	switch val := v.(type) {
	case nil:
		return table.Null()
	case int32:
		return table.IntVal(int64(val))
	case int64:
		return table.IntVal(val)
	case int:
		return table.IntVal(int64(val))
	case float32:
		return table.FloatVal(float64(val))
	case float64:
		return table.FloatVal(val)
	case string:
		return stringValue(val)
	case bool:
		return table.BoolVal(val)
	case []byte:
		return stringValue(string(val))
	case time.Time:
		return table.TimeVal(val.UTC())
	case []any:
		list := make([]table.Value, len(val))
		for i, e := range val {
			list[i] = nativeValue(e)
		}
		return table.ListVal(list)
	case map[string]any:
		// Avro unions decode as {"type": value}
		for _, inner := range val {
			return nativeValue(inner)
		}
		return table.Null()
	default:
		return table.StrVal(fmt.Sprintf("%v", val))
	}
}
