package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// datetimeLayouts are tried in order when inferring datetime columns
var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// LoadCSV reads a CSV file with a header row into a Frame
func LoadCSV(path string) (*Frame, error) {
	file, err := os.Open(path) //nolint:gosec // Path is supplied by the operator
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file %s: %w", path, err)
	}
	defer file.Close()

	frame, err := ReadCSV(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file %s: %w", path, err)
	}
	return frame, nil
}

// ReadCSV parses CSV data with a header row. Column types are inferred from
// the non-empty cells of each column; empty cells become missing values.
func ReadCSV(r io.Reader) (*Frame, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("empty CSV input: missing header row")
	}
	if err != nil {
		return nil, fmt.Errorf("error reading CSV header: %w", err)
	}

	raw := make([][]string, len(header))
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV record: %w", err)
		}
		for i, cell := range record {
			raw[i] = append(raw[i], cell)
		}
	}

	columns := make([]Column, len(header))
	series := make([][]any, len(header))
	for i, name := range header {
		typ := inferType(raw[i])
		values, err := parseCells(typ, raw[i])
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
		columns[i] = Column{Name: strings.TrimSpace(name), Type: typ}
		series[i] = values
	}

	return New(columns, series)
}

func inferType(cells []string) Type {
	candidates := []Type{TypeInteger, TypeFloat, TypeBoolean, TypeDatetime}
	for _, typ := range candidates {
		seen := false
		ok := true
		for _, cell := range cells {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			seen = true
			if _, err := parseCell(typ, cell); err != nil {
				ok = false
				break
			}
		}
		if ok && seen {
			return typ
		}
	}
	return TypeString
}

func parseCells(typ Type, cells []string) ([]any, error) {
	values := make([]any, len(cells))
	for i, cell := range cells {
		if typ != TypeString {
			cell = strings.TrimSpace(cell)
		}
		if cell == "" {
			continue
		}
		v, err := parseCell(typ, cell)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		values[i] = v
	}
	return values, nil
}

func parseCell(typ Type, cell string) (any, error) {
	switch typ {
	case TypeInteger:
		return strconv.ParseInt(cell, 10, 64)
	case TypeFloat:
		return strconv.ParseFloat(cell, 64)
	case TypeBoolean:
		switch strings.ToLower(cell) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, fmt.Errorf("not a boolean: %q", cell)
	case TypeDatetime:
		for _, layout := range datetimeLayouts {
			if ts, err := time.Parse(layout, cell); err == nil {
				return ts, nil
			}
		}
		return nil, fmt.Errorf("not a datetime: %q", cell)
	default:
		return cell, nil
	}
}
