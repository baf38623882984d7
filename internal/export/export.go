// Package export writes categorized transactions as CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spendsort/spendsort/internal/model"
)

// Header is the CSV header of a transaction export.
const Header = "Date,Description,Amount,Category,AI Suggested,Confidence,User Verified"

const (
	numFields      = 7
	dateFormat     = "2006-01-02"
	colDate        = 0
	colDescription = 1
	colAmount      = 2
	colCategory    = 3
	colAISuggested = 4
	colConfidence  = 5
	colVerified    = 6
)

// Dir is the workspace subdirectory for exports.
const Dir = "exports"

// MarshalTransaction converts t to a CSV row. Category is the effective
// category, so a verified category wins over the AI suggestion.
func MarshalTransaction(t *model.Transaction) []string {
	row := make([]string, numFields)
	row[colDate] = t.Date.Format(dateFormat)
	row[colDescription] = t.Description
	row[colAmount] = t.Amount.StringFixed(2)
	row[colCategory] = t.EffectiveCategory()
	row[colAISuggested] = t.AISuggestedCategory
	row[colConfidence] = strconv.FormatFloat(t.ConfidenceScore, 'f', 4, 64)
	row[colVerified] = t.UserVerifiedCategory
	return row
}

// WriteTransactions writes the header and one row per transaction.
func WriteTransactions(w io.Writer, txns []*model.Transaction) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, t := range txns {
		if err := cw.Write(MarshalTransaction(t)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes txns to <root>/exports/<name> and returns the path.
func WriteFile(root, name string, txns []*model.Transaction) (string, error) {
	dir := filepath.Join(root, Dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating exports dir: %w", err)
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating export file: %w", err)
	}
	defer f.Close()

	if err := WriteTransactions(f, txns); err != nil {
		return "", fmt.Errorf("writing export: %w", err)
	}
	return path, f.Close()
}
