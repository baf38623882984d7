package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/spendsort/spendsort/internal/model"
)

// Field names understood by MappedParser.
const (
	FieldDate             = "date"
	FieldValueDate        = "value_date"
	FieldDescription      = "description"
	FieldPartnerIBAN      = "partner_iban"
	FieldType             = "type"
	FieldPaymentReference = "payment_reference"
	FieldAccountName      = "account_name"
	FieldAmount           = "amount"
	FieldOriginalAmount   = "original_amount"
	FieldOriginalCurrency = "original_currency"
	FieldExchangeRate     = "exchange_rate"
)

const unknownDescription = "Unknown"

// DefaultColumns maps fields to the headers of a typical online-bank export.
var DefaultColumns = map[string]string{
	FieldDate:             "Booking Date",
	FieldValueDate:        "Value Date",
	FieldDescription:      "Partner Name",
	FieldPartnerIBAN:      "Partner Iban",
	FieldType:             "Type",
	FieldPaymentReference: "Payment Reference",
	FieldAccountName:      "Account Name",
	FieldAmount:           "Amount (EUR)",
	FieldOriginalAmount:   "Original Amount",
	FieldOriginalCurrency: "Original Currency",
	FieldExchangeRate:     "Exchange Rate",
}

// DefaultDateFormats are tried in order.
var DefaultDateFormats = []string{"2006-01-02", "01/02/2006", "02/01/2006", "2006/01/02"}

// metadataFields are appended to the description as "[Key: Value, ...]", in
// this order. Type is not among them because it becomes the original
// category.
var metadataFields = []struct{ field, label string }{
	{FieldValueDate, "Value Date"},
	{FieldPartnerIBAN, "Partner Iban"},
	{FieldPaymentReference, "Payment Reference"},
	{FieldAccountName, "Account Name"},
	{FieldOriginalAmount, "Original Amount"},
	{FieldOriginalCurrency, "Original Currency"},
	{FieldExchangeRate, "Exchange Rate"},
}

var requiredFields = []string{FieldDate, FieldDescription, FieldAmount}

// MappedParser reads any CSV whose headers are named in Columns.
type MappedParser struct {
	Columns     map[string]string // field -> header
	DateFormats []string
}

// NewMappedParser returns a parser over the default mapping with columns
// overriding individual entries.
func NewMappedParser(columns map[string]string, dateFormats []string) *MappedParser {
	merged := make(map[string]string, len(DefaultColumns))
	for k, v := range DefaultColumns {
		merged[k] = v
	}
	for k, v := range columns {
		if v == "" {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}
	if len(dateFormats) == 0 {
		dateFormats = DefaultDateFormats
	}
	return &MappedParser{Columns: merged, DateFormats: dateFormats}
}

// Format returns the parser name.
func (p *MappedParser) Format() string { return "mapped" }

// Parse reads the CSV. The date, description and amount columns must exist.
// If more than half of the amounts are unparseable the whole file is
// rejected with ErrInvalidFile; otherwise bad rows are only counted.
func (p *MappedParser) Parse(r io.Reader) (*Batch, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no header row", ErrInvalidFile)
	}

	col := p.index(records[0])
	for _, f := range requiredFields {
		if _, ok := col[f]; !ok {
			return nil, fmt.Errorf("%w: missing required column %q (mapped to %s)", ErrInvalidFile, p.Columns[f], f)
		}
	}

	rows := records[1:]
	badAmounts := 0
	for _, rec := range rows {
		if _, err := parseAmount(cell(rec, col, FieldAmount)); err != nil {
			badAmounts++
		}
	}
	if len(rows) > 0 && float64(badAmounts) > 0.5*float64(len(rows)) {
		return nil, fmt.Errorf("%w: %d of %d amounts could not be converted to numbers", ErrInvalidFile, badAmounts, len(rows))
	}

	b := &Batch{}
	for _, rec := range rows {
		t, err := p.row(rec, col)
		if err != nil {
			b.Rejected++
			continue
		}
		b.Transactions = append(b.Transactions, t)
	}
	return b, nil
}

func (p *MappedParser) row(rec []string, col map[string]int) (*model.Transaction, error) {
	date, err := p.parseDate(cell(rec, col, FieldDate))
	if err != nil {
		return nil, err
	}

	amount, err := parseAmount(cell(rec, col, FieldAmount))
	if err != nil {
		amount, err = parseAmount(cell(rec, col, FieldOriginalAmount))
		if err != nil {
			return nil, err
		}
	}

	desc := cell(rec, col, FieldDescription)
	if desc == "" {
		desc = cell(rec, col, FieldPaymentReference)
	}
	if desc == "" {
		desc = unknownDescription
	}

	var extra []string
	for _, m := range metadataFields {
		if v := cell(rec, col, m.field); v != "" {
			extra = append(extra, m.label+": "+v)
		}
	}
	if len(extra) > 0 {
		desc = fmt.Sprintf("%s [%s]", desc, strings.Join(extra, ", "))
	}

	return newTransaction(date, desc, amount, cell(rec, col, FieldType)), nil
}

// index maps each configured field to its column position in header.
func (p *MappedParser) index(header []string) map[string]int {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	col := make(map[string]int, len(p.Columns))
	for field, name := range p.Columns {
		if i, ok := pos[name]; ok {
			col[field] = i
		}
	}
	return col
}

func (p *MappedParser) parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("empty date")
	}
	for _, layout := range p.DateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	// Timestamps such as "2024-01-05 14:30:00" keep only their date.
	if len(s) > 10 {
		if t, err := time.Parse("2006-01-02", s[:10]); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// parseAmount accepts "1,234.50", "€12.50" and "-$3".
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.NewReplacer("€", "", "$", "", ",", "", " ", "").Replace(s)
	if s == "" {
		return decimal.Decimal{}, errors.New("empty amount")
	}
	return decimal.NewFromString(s)
}

func cell(rec []string, col map[string]int, field string) string {
	i, ok := col[field]
	if !ok || i >= len(rec) {
		return ""
	}
	v := strings.TrimSpace(rec[i])
	if strings.EqualFold(v, "nan") {
		return ""
	}
	return v
}
