// Package loader reads tabular files into in-memory tables for the
// reference engine.
package loader

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	goavro "github.com/linkedin/goavro/v2"
	parquet "github.com/parquet-go/parquet-go"

	"tabq/table"
)

// Load reads a file and returns a Table. The format is chosen by extension;
// .csv and .jsonl may carry an additional .gz suffix.
func Load(filename string) (*table.Table, error) {
	name := filename
	compressed := false
	if strings.HasSuffix(strings.ToLower(name), ".gz") {
		compressed = true
		name = name[:len(name)-len(".gz")]
	}

	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".csv":
		return loadStream(filename, compressed, loadCSV)
	case ".jsonl":
		return loadStream(filename, compressed, loadJSONL)
	case ".json":
		if compressed {
			return nil, fmt.Errorf("compressed %s is not supported", ext)
		}
		return loadStream(filename, false, loadJSON)
	case ".avro":
		if compressed {
			return nil, fmt.Errorf("compressed %s is not supported", ext)
		}
		return loadStream(filename, false, loadAvro)
	case ".parquet":
		if compressed {
			return nil, fmt.Errorf("compressed %s is not supported", ext)
		}
		return loadParquet(filename)
	default:
		return nil, fmt.Errorf("unsupported file format %q (supported: .csv, .json, .jsonl, .avro, .parquet, plus .csv.gz/.jsonl.gz)", ext)
	}
}

func loadStream(filename string, compressed bool, read func(io.Reader) (*table.Table, error)) (*table.Table, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("cannot open %s: %w", filename, err)
	}
	defer f.Close()

	var r io.Reader = f
	if compressed {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("cannot decompress %s: %w", filename, err)
		}
		defer gz.Close()
		r = gz
	}

	t, err := read(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return t, nil
}

func loadCSV(r io.Reader) (*table.Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("cannot read CSV header: %w", err)
	}

	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(h)
	}

	t := table.New(columns)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV row: %w", err)
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

// parseValue infers the type of a CSV cell value.
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
	return table.StrVal(s)
}

func loadJSON(r io.Reader) (*table.Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var records []map[string]interface{}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("cannot parse JSON: %w (expected array of objects)", err)
	}
	return buildTableFromRecords(records), nil
}

func loadJSONL(r io.Reader) (*table.Table, error) {
	scanner := bufio.NewScanner(r)
	var records []map[string]interface{}
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec map[string]interface{}
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("invalid JSON on line %d: %w", lineNum, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return buildTableFromRecords(records), nil
}

func buildTableFromRecords(records []map[string]interface{}) *table.Table {
	if len(records) == 0 {
		return table.New(nil)
	}

	colSet := make(map[string]bool)
	var columns []string
	for _, rec := range records {
		for k := range rec {
			if !colSet[k] {
				colSet[k] = true
				columns = append(columns, k)
			}
		}
	}

	t := table.New(columns)
	for _, rec := range records {
		vals := make([]table.Value, len(columns))
		for i, col := range columns {
			v, ok := rec[col]
			if !ok || v == nil {
				vals[i] = table.Null()
				continue
			}
			vals[i] = goValue(v)
		}
		t.AddRow(vals)
	}
	return t
}

// goValue converts a decoded JSON/Avro/Parquet value to a table cell.
func goValue(v interface{}) table.Value {
	switch val := v.(type) {
	case int32:
		return table.IntVal(int64(val))
	case int64:
		return table.IntVal(val)
	case int:
		return table.IntVal(int64(val))
	case float32:
		return table.FloatVal(float64(val))
	case float64:
		// JSON numbers are float64; check if it's actually an integer
		if val == float64(int64(val)) {
			return table.IntVal(int64(val))
		}
		return table.FloatVal(val)
	case string:
		return table.StrVal(val)
	case bool:
		return table.BoolVal(val)
	case []byte:
		return table.StrVal(string(val))
	case nil:
		return table.Null()
	case map[string]interface{}:
		// Avro unions decode as {"type": value} - extract the value
		for _, inner := range val {
			return goValue(inner)
		}
		return table.Null()
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return table.StrVal(fmt.Sprintf("%v", val))
		}
		return table.StrVal(string(b))
	}
}

func loadAvro(r io.Reader) (*table.Table, error) {
	ocfr, err := goavro.NewOCFReader(r)
	if err != nil {
		return nil, fmt.Errorf("cannot read Avro OCF: %w", err)
	}

	// Extract column names from the writer schema.
	var schemaDef struct {
		Fields []struct {
			Name string `json:"name"`
		} `json:"fields"`
	}
	if err := json.Unmarshal([]byte(ocfr.Codec().Schema()), &schemaDef); err != nil {
		return nil, fmt.Errorf("cannot parse Avro schema: %w", err)
	}

	columns := make([]string, len(schemaDef.Fields))
	for i, field := range schemaDef.Fields {
		columns[i] = field.Name
	}

	t := table.New(columns)
	for ocfr.Scan() {
		datum, err := ocfr.Read()
		if err != nil {
			return nil, fmt.Errorf("error reading Avro record: %w", err)
		}
		rec, ok := datum.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("unexpected Avro record type %T", datum)
		}

		vals := make([]table.Value, len(columns))
		for i, col := range columns {
			v, exists := rec[col]
			if !exists || v == nil {
				vals[i] = table.Null()
				continue
			}
			vals[i] = goValue(v)
		}
		t.AddRow(vals)
	}
	if err := ocfr.Err(); err != nil {
		return nil, fmt.Errorf("error reading Avro file: %w", err)
	}
	return t, nil
}

func loadParquet(filename string) (*table.Table, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("cannot open %s: %w", filename, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("cannot stat %s: %w", filename, err)
	}
	pf, err := parquet.OpenFile(f, st.Size())
	if err != nil {
		return nil, fmt.Errorf("cannot read parquet file %s: %w", filename, err)
	}

	fields := pf.Schema().Fields()
	columns := make([]string, len(fields))
	for i, field := range fields {
		columns[i] = field.Name()
	}

	// Flat files only: leaf column index matches field order.
	t := table.New(columns)
	for _, rg := range pf.RowGroups() {
		if err := readRowGroup(t, rg, len(columns)); err != nil {
			return nil, fmt.Errorf("error reading parquet rows from %s: %w", filename, err)
		}
	}
	return t, nil
}

func readRowGroup(t *table.Table, rg parquet.RowGroup, ncols int) error {
	rows := rg.Rows()
	defer rows.Close()

	buf := make([]parquet.Row, 64)
	for {
		n, err := rows.ReadRows(buf)
		for _, row := range buf[:n] {
			vals := make([]table.Value, ncols)
			for i := range vals {
				vals[i] = table.Null()
			}
			for _, v := range row {
				if ci := int(v.Column()); ci >= 0 && ci < ncols {
					vals[ci] = parquetValue(v)
				}
			}
			t.AddRow(vals)
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func parquetValue(v parquet.Value) table.Value {
	if v.IsNull() {
		return table.Null()
	}
	switch v.Kind() {
	case parquet.Boolean:
		return table.BoolVal(v.Boolean())
	case parquet.Int32:
		return table.IntVal(int64(v.Int32()))
	case parquet.Int64:
		return table.IntVal(v.Int64())
	case parquet.Float:
		return table.FloatVal(float64(v.Float()))
	case parquet.Double:
		return table.FloatVal(v.Double())
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return table.StrVal(string(v.ByteArray()))
	default:
		return table.StrVal(v.String())
	}
}
