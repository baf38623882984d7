package export

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spendsort/spendsort/internal/model"
)

func txns() []*model.Transaction {
	return []*model.Transaction{
		{
			Date:                 time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
			Description:          "Pizza Place [Account Name: Main]",
			Amount:               decimal.RequireFromString("-18.5"),
			OriginalCategory:     "Expense",
			AISuggestedCategory:  "Miscellaneous",
			ConfidenceScore:      0.42,
			UserVerifiedCategory: "Dining",
		},
		{
			Date:                time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC),
			Description:         "Rewe",
			Amount:              decimal.RequireFromString("-30"),
			OriginalCategory:    "Expense",
			AISuggestedCategory: "Groceries",
			ConfidenceScore:     0.91,
		},
		{
			Date:             time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC),
			Description:      "Salary",
			Amount:           decimal.RequireFromString("2500"),
			OriginalCategory: "Income",
		},
	}
}

func TestWriteTransactions(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTransactions(&buf, txns()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"Date", "Description", "Amount", "Category", "AI Suggested", "Confidence", "User Verified"}, rows[0])
	assert.Equal(t, []string{"2024-01-05", "Pizza Place [Account Name: Main]", "-18.50", "Dining", "Miscellaneous", "0.4200", "Dining"}, rows[1])
	assert.Equal(t, "Groceries", rows[2][colCategory])
	assert.Equal(t, "Income", rows[3][colCategory], "falls back to the original category")
}

func TestWriteFile(t *testing.T) {
	root := t.TempDir()
	path, err := WriteFile(root, "all.csv", txns())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "exports", "all.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Pizza Place")
}
