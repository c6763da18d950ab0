// PlExport - Plex Library Export Tool
// Copyright 2026 PlExport contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plexport/plexport

package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/goccy/go-json"
)

// WriteCSV serializes records as CSV with a header row. Records share one
// column set (they come from a single Format call), so the first record's
// columns define the header.
func WriteCSV(w io.Writer, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	cw := csv.NewWriter(w)
	cols := records[0].Columns()
	if err := cw.Write(cols); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	row := make([]string, len(cols))
	for _, record := range records {
		for i, col := range cols {
			row[i] = valueString(record.Value(col))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteJSON serializes records as an indented JSON array, preserving
// column order within each object.
func WriteJSON(w io.Writer, records []Record) error {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i := range records {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
		if err := writeRecordJSON(&buf, records[i]); err != nil {
			return err
		}
	}
	if len(records) > 0 {
		buf.WriteByte('\n')
	}
	buf.WriteByte(']')
	buf.WriteByte('\n')

	_, err := w.Write(buf.Bytes())
	return err
}

// writeRecordJSON writes one record as a JSON object in column order.
func writeRecordJSON(buf *bytes.Buffer, record Record) error {
	buf.WriteString("  {")
	for i, col := range record.Columns() {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString("\n    ")

		key, err := json.Marshal(col)
		if err != nil {
			return fmt.Errorf("marshal column name: %w", err)
		}
		buf.Write(key)
		buf.WriteString(": ")

		val, err := json.Marshal(record.Value(col))
		if err != nil {
			return fmt.Errorf("marshal value for %s: %w", col, err)
		}
		buf.Write(val)
	}
	buf.WriteString("\n  }")
	return nil
}

// valueString renders a record value for CSV output.
func valueString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}
