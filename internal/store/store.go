// Package store defines how transactions and their audit trail are
// persisted. Backends live in subpackages.
package store

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/spendsort/spendsort/internal/model"
)

// ErrNotFound is returned when a transaction ID does not exist.
var ErrNotFound = errors.New("transaction not found")

// Filter narrows List. The zero Filter matches everything.
type Filter struct {
	UnverifiedOnly  bool
	BelowConfidence float64 // 0 disables; otherwise ConfidenceScore < BelowConfidence
	From, To        time.Time
}

// Match reports whether t passes the filter.
func (f Filter) Match(t *model.Transaction) bool {
	if f.UnverifiedOnly && t.IsVerified() {
		return false
	}
	if f.BelowConfidence > 0 && t.ConfidenceScore >= f.BelowConfidence {
		return false
	}
	if !f.From.IsZero() && t.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && t.Date.After(f.To) {
		return false
	}
	return true
}

// Store persists transactions. Insert treats a repeated TransactionHash as
// already imported: it returns false and no error.
type Store interface {
	Insert(ctx context.Context, t *model.Transaction) (bool, error)
	Exists(ctx context.Context, hash string) (bool, error)
	Get(ctx context.Context, id string) (*model.Transaction, error)
	List(ctx context.Context, f Filter) ([]*model.Transaction, error)
	UpdatePredictions(ctx context.Context, txns []*model.Transaction) error
	SetVerifiedCategory(ctx context.Context, id, category string) (*model.Transaction, error)
	AuditTrail(ctx context.Context, id string) ([]model.AuditEntry, error)
	AllAudit(ctx context.Context) ([]model.AuditEntry, error)
	// DeleteRange removes the transactions dated within [from, to] together
	// with their audit entries and returns how many were removed. A zero
	// bound is open, so two zero bounds empty the store.
	DeleteRange(ctx context.Context, from, to time.Time) (int, error)
	// Replace swaps the whole contents for txns and audit in one write,
	// keeping their IDs and timestamps.
	Replace(ctx context.Context, txns []*model.Transaction, audit []model.AuditEntry) error
	Close() error
}

// PreviousCategory is what an audit entry records as the old value when a
// verified category is written: the earlier verification if any, else the
// AI suggestion.
func PreviousCategory(t *model.Transaction) string {
	if t.UserVerifiedCategory != "" {
		return t.UserVerifiedCategory
	}
	return t.AISuggestedCategory
}

// SortTransactions orders by date, then creation time, then ID.
func SortTransactions(txns []*model.Transaction) {
	slices.SortStableFunc(txns, func(a, b *model.Transaction) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
