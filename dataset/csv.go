package dataset

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/YuminosukeSato/mlcompare/pkg/errors"
)

// naValues are the cell spellings read as missing.
var naValues = mapset.NewSet(
	"", "NA", "N/A", "n/a", "NaN", "nan", "-NaN", "-nan", "NULL", "null", "None",
	"<NA>", "#N/A", "#NA", "1.#IND", "1.#QNAN", "-1.#IND", "-1.#QNAN", "#N/A N/A",
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// IsMissingToken reports whether a raw cell is read as missing.
func IsMissingToken(cell string) bool {
	return naValues.Contains(strings.TrimSpace(cell))
}

// ParseCSV parses raw CSV bytes into a Table.
func ParseCSV(data []byte) (*Table, error) {
	return ReadCSV(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
}

// ReadCSV reads a comma separated table with a header row. Every data row
// must have as many fields as the header. Column kinds are inferred: a column
// is numeric when every non-missing cell parses as a float.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 0
	reader.ReuseRecord = false

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.NewDataFormatError(0, "no columns to parse from file", nil)
	}
	if err != nil {
		return nil, csvFormatError(err)
	}
	names := headerNames(header)

	raw := make([][]string, len(names))
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, csvFormatError(err)
		}
		for j, cell := range record {
			raw[j] = append(raw[j], cell)
		}
	}
	if len(raw[0]) == 0 {
		return nil, errors.NewDataFormatError(0, "no data rows", nil)
	}

	cols := make([]*Column, len(names))
	for j, name := range names {
		cols[j] = inferColumn(name, raw[j])
	}
	return NewTable(cols...), nil
}

func csvFormatError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		if errors.Is(pe.Err, csv.ErrFieldCount) {
			return errors.NewDataFormatError(pe.Line, "inconsistent number of fields", pe.Err)
		}
		return errors.NewDataFormatError(pe.Line, "malformed CSV", pe.Err)
	}
	return errors.NewDataFormatError(0, "unreadable CSV", err)
}

// headerNames fills blank names with "Unnamed: i" and suffixes duplicates
// with ".1", ".2", ...
func headerNames(header []string) []string {
	names := make([]string, len(header))
	used := mapset.NewThreadUnsafeSet[string]()
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		base, n := name, 0
		for used.Contains(name) {
			n++
			name = fmt.Sprintf("%s.%d", base, n)
		}
		used.Add(name)
		names[i] = name
	}
	return names
}

var boolTokens = map[string]float64{
	"True": 1, "TRUE": 1, "true": 1,
	"False": 0, "FALSE": 0, "false": 0,
}

// parseBools は全セルが真偽値トークンの列を 1/0 に変換する。
// 欠損を含む列は真偽値として扱わない
func parseBools(cells []string) ([]float64, bool) {
	values := make([]float64, len(cells))
	for i, cell := range cells {
		v, ok := boolTokens[strings.TrimSpace(cell)]
		if !ok {
			return nil, false
		}
		values[i] = v
	}
	return values, len(cells) > 0
}

func inferColumn(name string, cells []string) *Column {
	values := make([]float64, len(cells))
	missing := make([]bool, len(cells))
	numeric := true
	for i, cell := range cells {
		if IsMissingToken(cell) {
			missing[i] = true
			values[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
		if err != nil {
			numeric = false
			break
		}
		values[i] = v
	}
	if numeric {
		return &Column{Name: name, Kind: Numeric, Values: values, Missing: missing}
	}
	if bools, ok := parseBools(cells); ok {
		return &Column{Name: name, Kind: Numeric, Values: bools, Missing: make([]bool, len(cells))}
	}

	labels := make([]string, len(cells))
	for i, cell := range cells {
		missing[i] = IsMissingToken(cell)
		if !missing[i] {
			labels[i] = cell
		}
	}
	return &Column{Name: name, Kind: Categorical, Labels: labels, Missing: missing}
}
