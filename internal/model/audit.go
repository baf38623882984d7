package model

import "time"

// AuditEntry records one write of a transaction's verified category.
// Entries are append-only.
type AuditEntry struct {
	ID            string    `json:"id"`
	TransactionID string    `json:"transaction_id"`
	OldCategory   string    `json:"old_category"`
	NewCategory   string    `json:"new_category"`
	Timestamp     time.Time `json:"timestamp"`
}
