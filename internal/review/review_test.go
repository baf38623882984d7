package review

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spendsort/spendsort/internal/artifact"
	"github.com/spendsort/spendsort/internal/categories"
	"github.com/spendsort/spendsort/internal/categorize"
	"github.com/spendsort/spendsort/internal/model"
	"github.com/spendsort/spendsort/internal/store"
	"github.com/spendsort/spendsort/internal/store/boltstore"
	"github.com/spendsort/spendsort/internal/store/storetest"
	"github.com/spendsort/spendsort/internal/training"
)

type fixture struct {
	svc   *Service
	store store.Store
	model *artifact.FileStore
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	s, err := boltstore.Open(filepath.Join(t.TempDir(), "spendsort.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	models := artifact.NewFileStore(filepath.Join(t.TempDir(), "model"))
	cats := categories.NewService([]string{"Dining", "Groceries", "Miscellaneous"})
	svc := NewService(s,
		training.New(models, training.DefaultOptions(), zerolog.Nop()),
		categorize.New(models, categorize.DefaultThreshold, cats.Fallback(), zerolog.Nop()),
		cats, zerolog.Nop())
	return fixture{svc: svc, store: s, model: models}
}

func (f fixture) insert(t *testing.T, txns ...*model.Transaction) {
	t.Helper()
	for _, tx := range txns {
		added, err := f.store.Insert(context.Background(), tx)
		require.NoError(t, err)
		require.True(t, added)
	}
}

func TestVerify(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tx := storetest.Txn("2024-01-05", "Pizza Place", "-18.00")
	tx.AISuggestedCategory = "Miscellaneous"
	f.insert(t, tx)

	got, err := f.svc.Verify(ctx, tx.ID, "  Dining ")
	require.NoError(t, err)
	assert.Equal(t, "Dining", got.UserVerifiedCategory)

	_, err = f.svc.Verify(ctx, tx.ID, "Takeaway")
	require.NoError(t, err, "categories outside the list are accepted")

	trail, err := f.store.AuditTrail(ctx, tx.ID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, "Miscellaneous", trail[0].OldCategory)
	assert.Equal(t, "Dining", trail[0].NewCategory)
	assert.Equal(t, "Dining", trail[1].OldCategory)
	assert.Equal(t, "Takeaway", trail[1].NewCategory)
}

func TestVerify_Errors(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Verify(context.Background(), "missing", "Dining")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = f.svc.Verify(context.Background(), "missing", " ")
	assert.Error(t, err)
}

func TestPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	low := storetest.Txn("2024-01-01", "A", "-1")
	low.ConfidenceScore = 0.2
	high := storetest.Txn("2024-01-02", "B", "-1")
	high.ConfidenceScore = 0.9
	lowest := storetest.Txn("2024-01-03", "C", "-1")
	done := storetest.Txn("2024-01-04", "D", "-1")
	done.UserVerifiedCategory = "Dining"
	f.insert(t, low, high, lowest, done)

	got, err := f.svc.Pending(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"C", "A", "B"}, []string{got[0].Description, got[1].Description, got[2].Description})

	got, err = f.svc.Pending(ctx, 0.7)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestRetrain_NotEnoughData(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		tx := storetest.Txn(fmt.Sprintf("2024-01-%02d", i+1), "Restaurant", "-10")
		tx.UserVerifiedCategory = "Dining"
		f.insert(t, tx)
	}
	res, err := f.svc.Retrain(context.Background())
	assert.ErrorIs(t, err, training.ErrNotTrained)
	require.NotNil(t, res.Training)
	assert.Equal(t, 3, res.Training.Samples)
	assert.False(t, f.model.Exists())
}

func TestRetrain_RecategorizesUnverified(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 6; i++ {
		tx := storetest.Txn(fmt.Sprintf("2024-01-%02d", i+1), "Restaurant", "-10")
		tx.UserVerifiedCategory = "Dining"
		f.insert(t, tx)
	}
	for i := 0; i < 6; i++ {
		tx := storetest.Txn(fmt.Sprintf("2024-02-%02d", i+1), "Supermarket", "-30")
		tx.UserVerifiedCategory = "Groceries"
		f.insert(t, tx)
	}
	open := storetest.Txn("2024-03-01", "Restaurant", "-12")
	open.OriginalCategory = ""
	open.AISuggestedCategory = "Miscellaneous"
	f.insert(t, open)

	res, err := f.svc.Retrain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12, res.Training.Samples)
	assert.Equal(t, 1, res.Training.Excluded)
	assert.Equal(t, 1, res.Recategorized.Categorized)
	assert.True(t, f.model.Exists())

	got, err := f.store.Get(ctx, open.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dining", got.AISuggestedCategory)
	assert.Greater(t, got.ConfidenceScore, categorize.DefaultThreshold)
	assert.Empty(t, got.UserVerifiedCategory)
}
