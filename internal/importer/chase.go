package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ChaseParser parses Chase bank checking CSV exports.
type ChaseParser struct{}

const (
	chaseDateFormat = "01/02/2006"
	chaseNumFields  = 7
	chaseColDate    = 1
	chaseColDesc    = 2
	chaseColAmount  = 3
	chaseColType    = 4
)

// Format returns the parser name.
func (p *ChaseParser) Format() string { return "chase" }

// Parse reads a Chase CSV. The bank's transaction type is kept as metadata
// in the description; the original category is the direction of the amount.
func (p *ChaseParser) Parse(r io.Reader) (*Batch, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = chaseNumFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading chase CSV: %w", err)
	}

	b := &Batch{}
	if len(records) <= 1 {
		return b, nil
	}
	for _, rec := range records[1:] {
		date, err := time.Parse(chaseDateFormat, strings.TrimSpace(rec[chaseColDate]))
		if err != nil {
			b.Rejected++
			continue
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(rec[chaseColAmount]))
		if err != nil {
			b.Rejected++
			continue
		}
		desc := strings.TrimSpace(rec[chaseColDesc])
		if desc == "" {
			desc = unknownDescription
		}
		if typ := strings.TrimSpace(rec[chaseColType]); typ != "" {
			desc = fmt.Sprintf("%s [Type: %s]", desc, typ)
		}
		b.Transactions = append(b.Transactions, newTransaction(date, desc, amount, ""))
	}
	return b, nil
}
