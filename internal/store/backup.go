package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spendsort/spendsort/internal/dedup"
	"github.com/spendsort/spendsort/internal/model"
)

// BackupVersion is the format version written by Dump.
const BackupVersion = 1

// Backup is the portable JSON form of a store: every transaction with its
// predictions and verification, plus the audit log.
type Backup struct {
	Version      int                  `json:"version"`
	CreatedAt    time.Time            `json:"created_at"`
	Transactions []*model.Transaction `json:"transactions"`
	Audit        []model.AuditEntry   `json:"audit"`
}

// Dump writes the full contents of s to w as indented JSON.
func Dump(ctx context.Context, s Store, w io.Writer, now time.Time) (*Backup, error) {
	txns, err := s.List(ctx, Filter{})
	if err != nil {
		return nil, err
	}
	audit, err := s.AllAudit(ctx)
	if err != nil {
		return nil, err
	}
	b := &Backup{
		Version:      BackupVersion,
		CreatedAt:    now.UTC(),
		Transactions: txns,
		Audit:        audit,
	}
	if b.Transactions == nil {
		b.Transactions = []*model.Transaction{}
	}
	if b.Audit == nil {
		b.Audit = []model.AuditEntry{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(b); err != nil {
		return nil, fmt.Errorf("writing backup: %w", err)
	}
	return b, nil
}

// ReadBackup decodes a backup and checks it can be restored. Transactions
// without a hash get one recomputed from their date, amount and partner.
func ReadBackup(r io.Reader) (*Backup, error) {
	var b Backup
	if err := json.NewDecoder(r).Decode(&b); err != nil {
		return nil, fmt.Errorf("reading backup: %w", err)
	}
	if b.Version != BackupVersion {
		return nil, fmt.Errorf("unsupported backup version %d", b.Version)
	}

	ids := make(map[string]bool, len(b.Transactions))
	hashes := make(map[string]bool, len(b.Transactions))
	for i, t := range b.Transactions {
		if t == nil || t.ID == "" {
			return nil, fmt.Errorf("backup transaction %d has no id", i)
		}
		if ids[t.ID] {
			return nil, fmt.Errorf("backup repeats transaction id %s", t.ID)
		}
		ids[t.ID] = true
		if t.TransactionHash == "" {
			t.TransactionHash = dedup.ForTransaction(*t)
		}
		if hashes[t.TransactionHash] {
			return nil, fmt.Errorf("backup transaction %s duplicates hash %s", t.ID, t.TransactionHash)
		}
		hashes[t.TransactionHash] = true
	}
	for _, e := range b.Audit {
		if !ids[e.TransactionID] {
			return nil, fmt.Errorf("audit entry %s refers to unknown transaction %s", e.ID, e.TransactionID)
		}
	}
	return &b, nil
}

// Restore replaces the contents of s with b.
func Restore(ctx context.Context, s Store, b *Backup) error {
	if err := s.Replace(ctx, b.Transactions, b.Audit); err != nil {
		return fmt.Errorf("restoring backup: %w", err)
	}
	return nil
}
