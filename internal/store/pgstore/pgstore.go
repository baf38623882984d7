// Package pgstore keeps transactions in Postgres through gorm.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/spendsort/spendsort/internal/model"
	"github.com/spendsort/spendsort/internal/store"
)

// TransactionRow is the transactions table.
type TransactionRow struct {
	ID                   string          `gorm:"primaryKey;size:36"`
	Date                 time.Time       `gorm:"type:date;not null;index"`
	Description          string          `gorm:"not null"`
	Amount               decimal.Decimal `gorm:"type:numeric;not null"`
	OriginalCategory     string          `gorm:"size:100"`
	AISuggestedCategory  string          `gorm:"column:ai_suggested_category;size:100"`
	ConfidenceScore      float64
	UserVerifiedCategory string `gorm:"size:100"`
	TransactionHash      string `gorm:"size:16;not null;uniqueIndex"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// TableName pins the table name.
func (TransactionRow) TableName() string { return "transactions" }

// AuditRow is the audit_log table. Rows are only ever inserted.
type AuditRow struct {
	ID            string    `gorm:"primaryKey;size:36"`
	Seq           int64     `gorm:"autoIncrement;uniqueIndex"`
	TransactionID string    `gorm:"size:36;not null;index"`
	OldCategory   string    `gorm:"size:100"`
	NewCategory   string    `gorm:"size:100;not null"`
	Timestamp     time.Time `gorm:"not null"`
}

// TableName pins the table name.
func (AuditRow) TableName() string { return "audit_log" }

const batchSize = 500

// Store is a gorm-backed store.Store.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

// Open connects to dsn and migrates both tables.
func Open(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("postgres store: empty DSN")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := db.AutoMigrate(&TransactionRow{}, &AuditRow{}); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Insert stores t unless its hash already exists.
func (s *Store) Insert(ctx context.Context, t *model.Transaction) (bool, error) {
	if t.TransactionHash == "" {
		return false, errors.New("insert: transaction has no hash")
	}
	row := toRow(t)
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	now := s.now().UTC()
	row.CreatedAt, row.UpdatedAt = now, now

	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "transaction_hash"}}, DoNothing: true}).
		Create(&row)
	if res.Error != nil {
		return false, fmt.Errorf("inserting transaction: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	t.ID, t.CreatedAt, t.UpdatedAt = row.ID, now, now
	return true, nil
}

// Exists reports whether a transaction with hash is stored.
func (s *Store) Exists(ctx context.Context, hash string) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&TransactionRow{}).Where("transaction_hash = ?", hash).Count(&n).Error; err != nil {
		return false, fmt.Errorf("checking hash: %w", err)
	}
	return n > 0, nil
}

// Get returns the transaction with id.
func (s *Store) Get(ctx context.Context, id string) (*model.Transaction, error) {
	return get(s.db.WithContext(ctx), id)
}

// List returns matching transactions ordered by date.
func (s *Store) List(ctx context.Context, f store.Filter) ([]*model.Transaction, error) {
	q := s.db.WithContext(ctx).Model(&TransactionRow{})
	if f.UnverifiedOnly {
		q = q.Where("user_verified_category = ''")
	}
	if f.BelowConfidence > 0 {
		q = q.Where("confidence_score < ?", f.BelowConfidence)
	}
	if !f.From.IsZero() {
		q = q.Where("date >= ?", f.From)
	}
	if !f.To.IsZero() {
		q = q.Where("date <= ?", f.To)
	}
	var rows []TransactionRow
	if err := q.Order("date, created_at, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	out := make([]*model.Transaction, len(rows))
	for i := range rows {
		out[i] = fromRow(rows[i])
	}
	return out, nil
}

// UpdatePredictions writes AISuggestedCategory and ConfidenceScore for each
// transaction in one database transaction.
func (s *Store) UpdatePredictions(ctx context.Context, txns []*model.Transaction) error {
	now := s.now().UTC()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, t := range txns {
			res := tx.Model(&TransactionRow{}).Where("id = ?", t.ID).Updates(map[string]any{
				"ai_suggested_category": t.AISuggestedCategory,
				"confidence_score":      t.ConfidenceScore,
				"updated_at":            now,
			})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("%w: %s", store.ErrNotFound, t.ID)
			}
			t.UpdatedAt = now
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("updating predictions: %w", err)
	}
	return nil
}

// SetVerifiedCategory records a user's category and appends the audit entry
// in the same database transaction.
func (s *Store) SetVerifiedCategory(ctx context.Context, id, category string) (*model.Transaction, error) {
	var out *model.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := get(tx.Clauses(clause.Locking{Strength: "UPDATE"}), id)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		entry := AuditRow{
			ID:            uuid.NewString(),
			TransactionID: id,
			OldCategory:   store.PreviousCategory(t),
			NewCategory:   category,
			Timestamp:     now,
		}
		if err := tx.Model(&TransactionRow{}).Where("id = ?", id).Updates(map[string]any{
			"user_verified_category": category,
			"updated_at":             now,
		}).Error; err != nil {
			return err
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		t.UserVerifiedCategory = category
		t.UpdatedAt = now
		out = t
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("setting verified category: %w", err)
	}
	return out, nil
}

// AuditTrail returns the entries for one transaction, oldest first.
func (s *Store) AuditTrail(ctx context.Context, id string) ([]model.AuditEntry, error) {
	var rows []AuditRow
	if err := s.db.WithContext(ctx).Where("transaction_id = ?", id).Order("seq").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("reading audit trail: %w", err)
	}
	return auditEntries(rows), nil
}

// AllAudit returns every audit entry, oldest first.
func (s *Store) AllAudit(ctx context.Context) ([]model.AuditEntry, error) {
	var rows []AuditRow
	if err := s.db.WithContext(ctx).Order("seq").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("reading audit log: %w", err)
	}
	return auditEntries(rows), nil
}

// DeleteRange removes transactions dated within [from, to] and their audit
// rows in one database transaction.
func (s *Store) DeleteRange(ctx context.Context, from, to time.Time) (int, error) {
	var n int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := tx.Model(&TransactionRow{}).Select("id")
		if !from.IsZero() {
			ids = ids.Where("date >= ?", from)
		}
		if !to.IsZero() {
			ids = ids.Where("date <= ?", to)
		}
		if err := tx.Where("transaction_id IN (?)", ids).Delete(&AuditRow{}).Error; err != nil {
			return err
		}
		q := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		if !from.IsZero() {
			q = q.Where("date >= ?", from)
		}
		if !to.IsZero() {
			q = q.Where("date <= ?", to)
		}
		res := q.Delete(&TransactionRow{})
		n = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, fmt.Errorf("deleting transactions: %w", err)
	}
	return int(n), nil
}

// Replace empties both tables and inserts txns and audit, keeping their IDs
// and timestamps.
func (s *Store) Replace(ctx context.Context, txns []*model.Transaction, audit []model.AuditEntry) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM audit_log").Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM transactions").Error; err != nil {
			return err
		}
		if len(txns) > 0 {
			rows := make([]TransactionRow, len(txns))
			for i, t := range txns {
				if t.ID == "" || t.TransactionHash == "" {
					return errors.New("replace: transaction needs an id and a hash")
				}
				rows[i] = toRow(t)
			}
			if err := tx.CreateInBatches(rows, batchSize).Error; err != nil {
				return err
			}
		}
		if len(audit) > 0 {
			rows := make([]AuditRow, len(audit))
			for i, e := range audit {
				rows[i] = AuditRow{
					ID:            e.ID,
					TransactionID: e.TransactionID,
					OldCategory:   e.OldCategory,
					NewCategory:   e.NewCategory,
					Timestamp:     e.Timestamp,
				}
			}
			if err := tx.CreateInBatches(rows, batchSize).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replacing contents: %w", err)
	}
	return nil
}

func get(db *gorm.DB, id string) (*model.Transaction, error) {
	var row TransactionRow
	err := db.Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting transaction %s: %w", id, err)
	}
	return fromRow(row), nil
}

func toRow(t *model.Transaction) TransactionRow {
	return TransactionRow{
		ID:                   t.ID,
		Date:                 model.CalendarDay(t.Date),
		Description:          t.Description,
		Amount:               t.Amount,
		OriginalCategory:     t.OriginalCategory,
		AISuggestedCategory:  t.AISuggestedCategory,
		ConfidenceScore:      t.ConfidenceScore,
		UserVerifiedCategory: t.UserVerifiedCategory,
		TransactionHash:      t.TransactionHash,
		CreatedAt:            t.CreatedAt,
		UpdatedAt:            t.UpdatedAt,
	}
}

func fromRow(r TransactionRow) *model.Transaction {
	return &model.Transaction{
		ID:                   r.ID,
		Date:                 model.CalendarDay(r.Date),
		Description:          r.Description,
		Amount:               r.Amount,
		OriginalCategory:     r.OriginalCategory,
		AISuggestedCategory:  r.AISuggestedCategory,
		ConfidenceScore:      r.ConfidenceScore,
		UserVerifiedCategory: r.UserVerifiedCategory,
		TransactionHash:      r.TransactionHash,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
}

func auditEntries(rows []AuditRow) []model.AuditEntry {
	out := make([]model.AuditEntry, len(rows))
	for i, r := range rows {
		out[i] = model.AuditEntry{
			ID:            r.ID,
			TransactionID: r.TransactionID,
			OldCategory:   r.OldCategory,
			NewCategory:   r.NewCategory,
			Timestamp:     r.Timestamp,
		}
	}
	return out
}
