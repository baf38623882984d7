package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestEffectiveCategory(t *testing.T) {
	tests := []struct {
		name string
		txn  Transaction
		want string
	}{
		{"verified wins", Transaction{UserVerifiedCategory: "Dining", AISuggestedCategory: "Groceries", OriginalCategory: "Expense"}, "Dining"},
		{"ai over original", Transaction{AISuggestedCategory: "Groceries", OriginalCategory: "Expense"}, "Groceries"},
		{"original only", Transaction{OriginalCategory: "Income"}, "Income"},
		{"nothing", Transaction{}, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.txn.EffectiveCategory(), tt.name)
	}
}

func TestTrainingLabel(t *testing.T) {
	tests := []struct {
		name string
		txn  Transaction
		want string
	}{
		{"verified wins", Transaction{UserVerifiedCategory: "Dining", AISuggestedCategory: "Groceries", OriginalCategory: "Expense"}, "Dining"},
		{"ai suggestion ignored", Transaction{AISuggestedCategory: "Groceries", OriginalCategory: "Expense"}, "Expense"},
		{"ai suggestion alone is no label", Transaction{AISuggestedCategory: "Groceries"}, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.txn.TrainingLabel(), tt.name)
		assert.Equal(t, tt.want, tt.txn.Label(), tt.name)
	}
}

func TestDirection(t *testing.T) {
	assert.Equal(t, CategoryExpense, Direction(decimal.RequireFromString("-42.00")))
	assert.Equal(t, CategoryIncome, Direction(decimal.RequireFromString("3500")))
	assert.Equal(t, CategoryIncome, Direction(decimal.Zero))
}

func TestCalendarDay(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	in := time.Date(2024, 1, 5, 23, 59, 59, 0, loc)
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), CalendarDay(in))
}
