package pipeline

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// RawTable is an input table as read from CSV: a header row and string cells.
type RawTable struct {
	Headers []string
	Rows    [][]string
}

// cell returns row[col], tolerating short rows and a missing column (col < 0).
func (t RawTable) cell(row, col int) string {
	if col < 0 || col >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][col]
}

// ------------------- CSV Ingestion -------------------

// ReadTable parses a CSV export into a RawTable. Input that is not valid UTF-8
// is decoded as ISO-8859-1, which is what spreadsheet exports usually fall back to.
func ReadTable(r io.Reader) (RawTable, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return RawTable{}, fmt.Errorf("failed to read table: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return RawTable{}, fmt.Errorf("failed to decode table as latin-1: %w", err)
		}
		data = decoded
	}

	csvReader := csv.NewReader(bytes.NewReader(data))
	csvReader.LazyQuotes = true
	csvReader.FieldsPerRecord = -1

	headers, err := csvReader.Read()
	if err == io.EOF {
		return RawTable{}, ErrEmptyTable
	} else if err != nil {
		return RawTable{}, fmt.Errorf("failed to read CSV header: %w", err)
	}

	table := RawTable{Headers: make([]string, len(headers))}
	for i, h := range headers {
		// Clean header names: trim whitespace and remove all quotes
		cleanHeader := strings.TrimSpace(h)
		cleanHeader = strings.ReplaceAll(cleanHeader, `"`, "")
		table.Headers[i] = cleanHeader
	}

	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return RawTable{}, fmt.Errorf("CSV read error: %w", err)
		}
		if isBlankRecord(record) {
			continue
		}
		table.Rows = append(table.Rows, record)
	}
	return table, nil
}

func isBlankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
