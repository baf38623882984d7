// Package dedup derives the identity hash that keeps a bank row from being
// imported twice.
package dedup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/shopspring/decimal"

	"github.com/spendsort/spendsort/internal/model"
)

const (
	dateFormat = "2006-01-02"
	separator  = "|"
	// metadataMarker opens the bracketed metadata the importer appends to descriptions.
	metadataMarker = "["
)

// Index answers whether a hash has already been persisted.
type Index interface {
	Exists(ctx context.Context, hash string) (bool, error)
}

// PartnerName returns the part of description before the first '[', trimmed.
// "ACME Corp [Type: Card]" -> "ACME Corp"
func PartnerName(description string) string {
	if i := strings.Index(description, metadataMarker); i >= 0 {
		description = description[:i]
	}
	return strings.TrimSpace(description)
}

// Hash returns a 16 hex digit fingerprint of (calendar date, partner, amount).
// Time of day is discarded. The amount is rendered with decimal's canonical
// string form, so 12.50 and 12.5 hash identically.
func Hash(date time.Time, partnerName string, amount decimal.Decimal) string {
	key := strings.Join([]string{
		date.Format(dateFormat),
		partnerName,
		amount.String(),
	}, separator)
	return fmt.Sprintf("%016x", xxhash.Sum64String(key))
}

// ForTransaction hashes t using the partner name derived from its description.
func ForTransaction(t model.Transaction) string {
	return Hash(t.Date, PartnerName(t.Description), t.Amount)
}
