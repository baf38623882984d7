package training

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ReadExamples parses a labeled CSV with a header row. textColumn and
// labelColumn name the description and category columns. Rows missing
// either value are dropped and counted.
func ReadExamples(r io.Reader, textColumn, labelColumn string) ([]LabeledRecord, int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, 0, errors.New("reading training CSV: empty file")
	}
	if err != nil {
		return nil, 0, fmt.Errorf("reading training CSV header: %w", err)
	}

	textIdx, labelIdx := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) {
		case textColumn:
			textIdx = i
		case labelColumn:
			labelIdx = i
		}
	}
	if textIdx < 0 {
		return nil, 0, fmt.Errorf("training CSV has no %q column", textColumn)
	}
	if labelIdx < 0 {
		return nil, 0, fmt.Errorf("training CSV has no %q column", labelColumn)
	}

	var out []LabeledRecord
	skipped := 0
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("reading training CSV: %w", err)
		}
		if textIdx >= len(row) || labelIdx >= len(row) {
			skipped++
			continue
		}
		ex := Example{Description: strings.TrimSpace(row[textIdx]), Category: strings.TrimSpace(row[labelIdx])}
		if ex.Description == "" || ex.Category == "" {
			skipped++
			continue
		}
		out = append(out, ex)
	}
	return out, skipped, nil
}

// TrainFromCSV trains from a labeled CSV instead of stored transactions.
func (t *Trainer) TrainFromCSV(r io.Reader, textColumn, labelColumn string) (*Result, error) {
	records, skipped, err := ReadExamples(r, textColumn, labelColumn)
	if err != nil {
		return nil, err
	}
	res, err := t.Train(records)
	if res != nil {
		res.Excluded += skipped
	}
	return res, err
}
