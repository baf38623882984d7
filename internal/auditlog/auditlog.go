// Package auditlog is the CSV form of the category change log.
package auditlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spendsort/spendsort/internal/model"
)

// Header is the CSV header for an audit log export.
const Header = "timestamp,transaction_id,old_category,new_category,entry_id"

const (
	numFields  = 5
	colTime    = 0
	colTxnID   = 1
	colOld     = 2
	colNew     = 3
	colEntryID = 4
)

// MarshalEntry converts an AuditEntry to a CSV row.
func MarshalEntry(e model.AuditEntry) []string {
	row := make([]string, numFields)
	row[colTime] = e.Timestamp.UTC().Format(time.RFC3339Nano)
	row[colTxnID] = e.TransactionID
	row[colOld] = e.OldCategory
	row[colNew] = e.NewCategory
	row[colEntryID] = e.ID
	return row
}

// UnmarshalEntry converts a CSV row to an AuditEntry.
func UnmarshalEntry(record []string) (model.AuditEntry, error) {
	if len(record) != numFields {
		return model.AuditEntry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339Nano, record[colTime])
	if err != nil {
		return model.AuditEntry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTime], err)
	}

	return model.AuditEntry{
		ID:            record[colEntryID],
		TransactionID: record[colTxnID],
		OldCategory:   record[colOld],
		NewCategory:   record[colNew],
		Timestamp:     ts,
	}, nil
}

// WriteEntries writes the header and entries to w.
func WriteEntries(w io.Writer, entries []model.AuditEntry) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadEntries parses a log written by WriteEntries.
func ReadEntries(r io.Reader) ([]model.AuditEntry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading audit log CSV: %w", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	var entries []model.AuditEntry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
