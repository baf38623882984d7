package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// CategoryIncome is the source-feed category for non-negative amounts.
	CategoryIncome = "Income"
	// CategoryExpense is the source-feed category for negative amounts.
	CategoryExpense = "Expense"
)

// Transaction is one imported bank row moving through the categorization pipeline.
type Transaction struct {
	ID                   string          `json:"id"` // assigned on insert
	Date                 time.Time       `json:"date"`
	Description          string          `json:"description"`
	Amount               decimal.Decimal `json:"amount"` // negative = expense, non-negative = income
	OriginalCategory     string          `json:"original_category"`
	AISuggestedCategory  string          `json:"ai_suggested_category,omitempty"`
	ConfidenceScore      float64         `json:"confidence_score"`
	UserVerifiedCategory string          `json:"user_verified_category,omitempty"` // empty until a user corrects it
	TransactionHash      string          `json:"transaction_hash"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// EffectiveCategory is the category shown and exported for the transaction.
// A verified category always wins over the AI suggestion.
func (t Transaction) EffectiveCategory() string {
	switch {
	case t.UserVerifiedCategory != "":
		return t.UserVerifiedCategory
	case t.AISuggestedCategory != "":
		return t.AISuggestedCategory
	default:
		return t.OriginalCategory
	}
}

// TrainingLabel is the label used when the transaction becomes a training
// example: the verified category, else the original one. The AI suggestion
// is never fed back as a label.
func (t Transaction) TrainingLabel() string {
	if t.UserVerifiedCategory != "" {
		return t.UserVerifiedCategory
	}
	return t.OriginalCategory
}

// IsVerified reports whether a user has confirmed or corrected the category.
func (t Transaction) IsVerified() bool {
	return t.UserVerifiedCategory != ""
}

// Text returns the description used for feature extraction.
func (t Transaction) Text() string { return t.Description }

// Label implements training.LabeledRecord.
func (t Transaction) Label() string { return t.TrainingLabel() }

// Direction returns the source-feed category implied by the sign of amount.
func Direction(amount decimal.Decimal) string {
	if amount.IsNegative() {
		return CategoryExpense
	}
	return CategoryIncome
}

// CalendarDay truncates t to midnight UTC of its calendar date.
func CalendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
