package dedup

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/spendsort/spendsort/internal/model"
)

var day = time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)

func TestPartnerName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Acme Corp", "Acme Corp"},
		{"  Acme Corp  ", "Acme Corp"},
		{"Acme Corp [Type: Card, Account Name: Main]", "Acme Corp"},
		{"Acme [a] [b]", "Acme"},
		{"[Payment Reference: 42]", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PartnerName(tt.input), "PartnerName(%q)", tt.input)
	}
}

func TestHash_Pure(t *testing.T) {
	amount := decimal.RequireFromString("-42.00")
	a := Hash(day, "Acme Corp", amount)
	b := Hash(day, "Acme Corp", amount)
	assert.Equal(t, a, b)
	assert.Len(t, a, 16)
}

func TestHash_IgnoresTimeOfDay(t *testing.T) {
	amount := decimal.RequireFromString("-42.00")
	morning := time.Date(2024, 1, 5, 8, 0, 0, 0, time.UTC)
	evening := time.Date(2024, 1, 5, 21, 30, 0, 0, time.UTC)
	assert.Equal(t, Hash(morning, "Acme Corp", amount), Hash(evening, "Acme Corp", amount))
}

func TestHash_CanonicalAmount(t *testing.T) {
	assert.Equal(t,
		Hash(day, "Acme Corp", decimal.RequireFromString("12.50")),
		Hash(day, "Acme Corp", decimal.RequireFromString("12.5")),
	)
}

func TestHash_DistinguishesFields(t *testing.T) {
	amount := decimal.RequireFromString("-42.00")
	base := Hash(day, "Acme Corp", amount)
	assert.NotEqual(t, base, Hash(day.AddDate(0, 0, 1), "Acme Corp", amount))
	assert.NotEqual(t, base, Hash(day, "Acme Corporation", amount))
	assert.NotEqual(t, base, Hash(day, "Acme Corp", amount.Neg()))
}

func TestForTransaction_UsesPartnerName(t *testing.T) {
	amount := decimal.RequireFromString("-42.00")
	txn := model.Transaction{
		Date:        day,
		Description: "Acme Corp [Type: Card Payment, Account Name: Main]",
		Amount:      amount,
	}
	assert.Equal(t, Hash(day, "Acme Corp", amount), ForTransaction(txn))
}
