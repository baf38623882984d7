// Package storetest is a behavioral test suite shared by every store
// backend.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spendsort/spendsort/internal/dedup"
	"github.com/spendsort/spendsort/internal/model"
	"github.com/spendsort/spendsort/internal/store"
)

// Txn builds a transaction with its dedup hash filled in.
func Txn(date, desc, amount string) *model.Transaction {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	t := &model.Transaction{
		Date:        d,
		Description: desc,
		Amount:      decimal.RequireFromString(amount),
	}
	t.OriginalCategory = model.Direction(t.Amount)
	t.TransactionHash = dedup.ForTransaction(*t)
	return t
}

// Run exercises s. open must return an empty store.
func Run(t *testing.T, open func(t *testing.T) store.Store) {
	t.Run("InsertAndGet", func(t *testing.T) { testInsertAndGet(t, open(t)) })
	t.Run("DuplicateHash", func(t *testing.T) { testDuplicateHash(t, open(t)) })
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, open(t)) })
	t.Run("ListFilter", func(t *testing.T) { testListFilter(t, open(t)) })
	t.Run("UpdatePredictions", func(t *testing.T) { testUpdatePredictions(t, open(t)) })
	t.Run("VerifyWritesAudit", func(t *testing.T) { testVerifyWritesAudit(t, open(t)) })
	t.Run("DeleteRange", func(t *testing.T) { testDeleteRange(t, open(t)) })
	t.Run("DeleteAll", func(t *testing.T) { testDeleteAll(t, open(t)) })
	t.Run("Replace", func(t *testing.T) { testReplace(t, open(t)) })
}

func testInsertAndGet(t *testing.T, s store.Store) {
	ctx := context.Background()
	in := Txn("2024-01-05", "Acme Corp [Account Name: Main]", "-42.00")

	added, err := s.Insert(ctx, in)
	require.NoError(t, err)
	assert.True(t, added)
	assert.NotEmpty(t, in.ID)
	assert.False(t, in.CreatedAt.IsZero())

	got, err := s.Get(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, in.Description, got.Description)
	assert.True(t, in.Amount.Equal(got.Amount))
	assert.True(t, in.Date.Equal(got.Date))
	assert.Equal(t, "Expense", got.OriginalCategory)
	assert.Equal(t, in.TransactionHash, got.TransactionHash)

	ok, err := s.Exists(ctx, in.TransactionHash)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.Exists(ctx, "0000000000000000")
	require.NoError(t, err)
	assert.False(t, ok)
}

func testDuplicateHash(t *testing.T, s store.Store) {
	ctx := context.Background()
	first := Txn("2024-01-05", "Acme Corp", "-42.00")
	added, err := s.Insert(ctx, first)
	require.NoError(t, err)
	require.True(t, added)

	again := Txn("2024-01-05", "Acme Corp [Payment Reference: INV-1]", "-42")
	added, err = s.Insert(ctx, again)
	require.NoError(t, err)
	assert.False(t, added)

	all, err := s.List(ctx, store.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func testGetMissing(t *testing.T, s store.Store) {
	_, err := s.Get(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.SetVerifiedCategory(context.Background(), "no-such-id", "Dining")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testListFilter(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := Txn("2024-01-03", "Cafe", "-4.50")
	b := Txn("2024-01-01", "Salary", "2500")
	c := Txn("2024-01-02", "Rewe", "-30")
	for _, tx := range []*model.Transaction{a, b, c} {
		_, err := s.Insert(ctx, tx)
		require.NoError(t, err)
	}
	a.AISuggestedCategory, a.ConfidenceScore = "Dining", 0.9
	c.AISuggestedCategory, c.ConfidenceScore = "Miscellaneous", 0.4
	require.NoError(t, s.UpdatePredictions(ctx, []*model.Transaction{a, c}))
	_, err := s.SetVerifiedCategory(ctx, b.ID, "Income")
	require.NoError(t, err)

	all, err := s.List(ctx, store.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"Salary", "Rewe", "Cafe"}, descriptions(all))

	pending, err := s.List(ctx, store.Filter{UnverifiedOnly: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"Rewe", "Cafe"}, descriptions(pending))

	low, err := s.List(ctx, store.Filter{UnverifiedOnly: true, BelowConfidence: 0.7})
	require.NoError(t, err)
	assert.Equal(t, []string{"Rewe"}, descriptions(low))
}

func testUpdatePredictions(t *testing.T, s store.Store) {
	ctx := context.Background()
	tx := Txn("2024-01-05", "Netflix", "-12.99")
	_, err := s.Insert(ctx, tx)
	require.NoError(t, err)

	tx.AISuggestedCategory = "Entertainment"
	tx.ConfidenceScore = 0.83
	tx.Description = "changed locally"
	require.NoError(t, s.UpdatePredictions(ctx, []*model.Transaction{tx}))

	got, err := s.Get(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, "Entertainment", got.AISuggestedCategory)
	assert.InDelta(t, 0.83, got.ConfidenceScore, 1e-9)
	assert.Equal(t, "Netflix", got.Description, "only prediction fields are written")
}

func testVerifyWritesAudit(t *testing.T, s store.Store) {
	ctx := context.Background()
	tx := Txn("2024-01-05", "Pizza Place", "-18")
	_, err := s.Insert(ctx, tx)
	require.NoError(t, err)
	tx.AISuggestedCategory, tx.ConfidenceScore = "Miscellaneous", 0.5
	require.NoError(t, s.UpdatePredictions(ctx, []*model.Transaction{tx}))

	got, err := s.SetVerifiedCategory(ctx, tx.ID, "Dining")
	require.NoError(t, err)
	assert.Equal(t, "Dining", got.UserVerifiedCategory)
	assert.Equal(t, "Dining", got.EffectiveCategory())

	_, err = s.SetVerifiedCategory(ctx, tx.ID, "Nightlife")
	require.NoError(t, err)

	trail, err := s.AuditTrail(ctx, tx.ID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, "Miscellaneous", trail[0].OldCategory)
	assert.Equal(t, "Dining", trail[0].NewCategory)
	assert.Equal(t, "Dining", trail[1].OldCategory)
	assert.Equal(t, "Nightlife", trail[1].NewCategory)
	assert.Equal(t, tx.ID, trail[1].TransactionID)
	assert.NotEqual(t, trail[0].ID, trail[1].ID)

	all, err := s.AllAudit(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func testDeleteRange(t *testing.T, s store.Store) {
	ctx := context.Background()
	dec := Txn("2023-12-31", "Bakery", "-3.10")
	jan1 := Txn("2024-01-01", "Rent", "-900")
	jan15 := Txn("2024-01-15", "Gym", "-30")
	jan31 := Txn("2024-01-31", "Salary", "2500")
	feb := Txn("2024-02-01", "Cinema", "-11")
	for _, tx := range []*model.Transaction{dec, jan1, jan15, jan31, feb} {
		_, err := s.Insert(ctx, tx)
		require.NoError(t, err)
	}
	_, err := s.SetVerifiedCategory(ctx, jan15.ID, "Health & Fitness")
	require.NoError(t, err)
	_, err = s.SetVerifiedCategory(ctx, feb.ID, "Entertainment")
	require.NoError(t, err)

	n, err := s.DeleteRange(ctx, day("2024-01-01"), day("2024-01-31"))
	require.NoError(t, err)
	assert.Equal(t, 3, n, "both bounds are inclusive")

	left, err := s.List(ctx, store.Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Bakery", "Cinema"}, descriptions(left))

	_, err = s.Get(ctx, jan15.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	trail, err := s.AuditTrail(ctx, jan15.ID)
	require.NoError(t, err)
	assert.Empty(t, trail)
	all, err := s.AllAudit(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, feb.ID, all[0].TransactionID)

	again := Txn("2024-01-15", "Gym", "-30")
	added, err := s.Insert(ctx, again)
	require.NoError(t, err)
	assert.True(t, added, "deleted rows no longer block re-import")

	n, err = s.DeleteRange(ctx, time.Time{}, day("2023-12-31"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.DeleteRange(ctx, day("2030-01-01"), time.Time{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testDeleteAll(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := Txn("2024-01-05", "Cafe", "-4.50")
	b := Txn("2024-03-05", "Bar", "-9")
	for _, tx := range []*model.Transaction{a, b} {
		_, err := s.Insert(ctx, tx)
		require.NoError(t, err)
	}
	_, err := s.SetVerifiedCategory(ctx, a.ID, "Dining")
	require.NoError(t, err)

	n, err := s.DeleteRange(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	left, err := s.List(ctx, store.Filter{})
	require.NoError(t, err)
	assert.Empty(t, left)
	audit, err := s.AllAudit(ctx)
	require.NoError(t, err)
	assert.Empty(t, audit)
	ok, err := s.Exists(ctx, a.TransactionHash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func testReplace(t *testing.T, s store.Store) {
	ctx := context.Background()
	old := Txn("2024-01-05", "Old Row", "-1")
	_, err := s.Insert(ctx, old)
	require.NoError(t, err)
	_, err = s.SetVerifiedCategory(ctx, old.ID, "Miscellaneous")
	require.NoError(t, err)

	created := time.Date(2023, 6, 1, 8, 30, 0, 0, time.UTC)
	kept := Txn("2024-02-10", "Pharmacy", "-12.345")
	kept.ID = "11111111-1111-1111-1111-111111111111"
	kept.AISuggestedCategory, kept.ConfidenceScore = "Health & Fitness", 0.75
	kept.UserVerifiedCategory = "Health"
	kept.CreatedAt, kept.UpdatedAt = created, created.Add(time.Hour)
	other := Txn("2024-02-11", "Paycheck", "1800")
	other.ID = "22222222-2222-2222-2222-222222222222"
	other.CreatedAt, other.UpdatedAt = created, created
	entry := model.AuditEntry{
		ID:            "33333333-3333-3333-3333-333333333333",
		TransactionID: kept.ID,
		OldCategory:   "Health & Fitness",
		NewCategory:   "Health",
		Timestamp:     created.Add(time.Hour),
	}

	require.NoError(t, s.Replace(ctx, []*model.Transaction{kept, other}, []model.AuditEntry{entry}))

	all, err := s.List(ctx, store.Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Pharmacy", "Paycheck"}, descriptions(all))
	_, err = s.Get(ctx, old.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	got, err := s.Get(ctx, kept.ID)
	require.NoError(t, err)
	assert.Equal(t, "Health", got.UserVerifiedCategory)
	assert.Equal(t, "Health & Fitness", got.AISuggestedCategory)
	assert.InDelta(t, 0.75, got.ConfidenceScore, 1e-9)
	assert.True(t, got.Amount.Equal(kept.Amount), "amount keeps every decimal place: %s", got.Amount)
	assert.True(t, created.Equal(got.CreatedAt))

	audit, err := s.AllAudit(ctx)
	require.NoError(t, err)
	require.Len(t, audit, 1)
	assert.Equal(t, entry.ID, audit[0].ID)
	assert.True(t, entry.Timestamp.Equal(audit[0].Timestamp))

	added, err := s.Insert(ctx, Txn("2024-02-11", "Paycheck", "1800"))
	require.NoError(t, err)
	assert.False(t, added, "restored hashes still deduplicate")

	require.NoError(t, s.Replace(ctx, nil, nil))
	all, err = s.List(ctx, store.Filter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func descriptions(txns []*model.Transaction) []string {
	out := make([]string, len(txns))
	for i, t := range txns {
		out[i] = t.Description
	}
	return out
}
