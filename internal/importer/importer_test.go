package importer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spendsort/spendsort/internal/artifact"
	"github.com/spendsort/spendsort/internal/categorize"
	"github.com/spendsort/spendsort/internal/dedup"
	"github.com/spendsort/spendsort/internal/store"
	"github.com/spendsort/spendsort/internal/store/boltstore"
)

const chaseCSV = `Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #
DEBIT,01/03/2025,GITHUB *PRO SUBSCRIPTION,-4.00,ACH_DEBIT,1000.00,
DEBIT,01/05/2025,WHOLEFDS MKT 10234,-82.13,DEBIT_CARD,917.87,
CREDIT,01/10/2025,ACME CONSULTING INVOICE 1042,3500.00,ACH_CREDIT,4417.87,
DEBIT,NOTADATE,BROKEN ROW,-1.00,ACH_DEBIT,4416.87,
`

const bankCSV = `Booking Date,Value Date,Partner Name,Partner Iban,Type,Payment Reference,Account Name,Amount (EUR),Original Amount,Original Currency,Exchange Rate
2024-01-05,2024-01-05,Acme Corp,,Expense,,Main Account,-42.00,,,
2024-01-06,2024-01-07,Pizza Place,DE89370400440532013000,,Dinner,Main Account,"-1,018.50",,,
2024-01-07,,,,,Rent January,Main Account,-900,,,
01/08/2024,,Salary Inc,,Income,,Main Account,€2500,,,
not a date,,Broken,,,,Main Account,-1,,,
`

func TestChaseParser_Parse(t *testing.T) {
	b, err := (&ChaseParser{}).Parse(strings.NewReader(chaseCSV))
	require.NoError(t, err)
	require.Len(t, b.Transactions, 3)
	assert.Equal(t, 1, b.Rejected)

	first := b.Transactions[0]
	assert.Equal(t, "GITHUB *PRO SUBSCRIPTION [Type: ACH_DEBIT]", first.Description)
	assert.Equal(t, "-4.00", first.Amount.StringFixed(2))
	assert.Equal(t, "Expense", first.OriginalCategory)
	assert.Equal(t, time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC), first.Date)
	assert.Equal(t, dedup.Hash(first.Date, "GITHUB *PRO SUBSCRIPTION", first.Amount), first.TransactionHash)

	income := b.Transactions[2]
	assert.True(t, income.Amount.IsPositive())
	assert.Equal(t, "Income", income.OriginalCategory)
}

func TestChaseParser_EmptyFile(t *testing.T) {
	b, err := (&ChaseParser{}).Parse(strings.NewReader("Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #\n"))
	require.NoError(t, err)
	assert.Empty(t, b.Transactions)
}

func TestChaseParser_WrongFieldCount(t *testing.T) {
	_, err := (&ChaseParser{}).Parse(strings.NewReader("a,b,c\n1,2,3\n"))
	assert.Error(t, err)
}

func TestMappedParser_Parse(t *testing.T) {
	p := NewMappedParser(nil, nil)
	b, err := p.Parse(strings.NewReader(bankCSV))
	require.NoError(t, err)
	require.Len(t, b.Transactions, 4)
	assert.Equal(t, 1, b.Rejected)

	acme := b.Transactions[0]
	assert.Equal(t, "Acme Corp [Value Date: 2024-01-05, Account Name: Main Account]", acme.Description)
	assert.Equal(t, "Expense", acme.OriginalCategory)
	assert.Equal(t, "-42", acme.Amount.String())
	assert.Equal(t, dedup.Hash(acme.Date, "Acme Corp", acme.Amount), acme.TransactionHash)

	pizza := b.Transactions[1]
	assert.Equal(t, "Pizza Place [Value Date: 2024-01-07, Partner Iban: DE89370400440532013000, Payment Reference: Dinner, Account Name: Main Account]", pizza.Description)
	assert.Equal(t, "-1018.5", pizza.Amount.String())
	assert.Equal(t, "Expense", pizza.OriginalCategory, "no Type falls back to the sign")

	rent := b.Transactions[2]
	assert.True(t, strings.HasPrefix(rent.Description, "Rent January ["), rent.Description)

	salary := b.Transactions[3]
	assert.Equal(t, "Income", salary.OriginalCategory)
	assert.Equal(t, "2500", salary.Amount.String())
	assert.Equal(t, time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), salary.Date)
}

func TestMappedParser_CustomColumns(t *testing.T) {
	p := NewMappedParser(map[string]string{
		FieldDate:        "Datum",
		FieldDescription: "Empfänger",
		FieldAmount:      "Betrag",
		FieldAccountName: "",
	}, []string{"02.01.2006"})

	csv := "Datum,Empfänger,Betrag,Account Name\n05.01.2024,REWE,-12.50,Girokonto\n"
	b, err := p.Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, b.Transactions, 1)
	assert.Equal(t, "REWE", b.Transactions[0].Description, "unmapped columns are ignored")
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), b.Transactions[0].Date)
}

func TestMappedParser_MissingRequiredColumn(t *testing.T) {
	_, err := NewMappedParser(nil, nil).Parse(strings.NewReader("Booking Date,Partner Name\n2024-01-01,x\n"))
	assert.ErrorIs(t, err, ErrInvalidFile)
	assert.ErrorContains(t, err, "Amount (EUR)")
}

func TestMappedParser_MostlyBadAmounts(t *testing.T) {
	csv := "Booking Date,Partner Name,Amount (EUR)\n2024-01-01,a,x\n2024-01-02,b,y\n2024-01-03,c,1\n"
	_, err := NewMappedParser(nil, nil).Parse(strings.NewReader(csv))
	assert.ErrorIs(t, err, ErrInvalidFile)

	csv = "Booking Date,Partner Name,Amount (EUR)\n2024-01-01,a,x\n2024-01-02,b,2\n"
	b, err := NewMappedParser(nil, nil).Parse(strings.NewReader(csv))
	require.NoError(t, err, "exactly half is still accepted")
	assert.Len(t, b.Transactions, 1)
	assert.Equal(t, 1, b.Rejected)
}

func TestMappedParser_OriginalAmountFallback(t *testing.T) {
	csv := "Booking Date,Partner Name,Amount (EUR),Original Amount\n2024-01-01,Shop,n/a,-20\n2024-01-02,Shop,-3,\n2024-01-03,Shop,-4,\n"
	b, err := NewMappedParser(nil, nil).Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, b.Transactions, 3)
	assert.Equal(t, "-20", b.Transactions[0].Amount.String())
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry(nil, nil)
	assert.NotNil(t, r.Get("mapped"))
	assert.NotNil(t, r.Get("CHASE"))
	assert.Nil(t, r.Get("unknown"))
	assert.Panics(t, func() { r.Register(&ChaseParser{}) })
}

func newService(t *testing.T) (*Service, store.Store) {
	t.Helper()
	s, err := boltstore.Open(filepath.Join(t.TempDir(), "spendsort.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	cat := categorize.New(artifact.NewFileStore(t.TempDir()), categorize.DefaultThreshold, "Miscellaneous", zerolog.Nop())
	return NewService(s, cat, zerolog.Nop()), s
}

func TestImport_SkipsDuplicates(t *testing.T) {
	svc, s := newService(t)
	ctx := context.Background()
	csv := "Booking Date,Partner Name,Amount (EUR)\n2024-01-05,Acme Corp,-42.00\n"
	p := NewMappedParser(nil, nil)

	b, err := p.Parse(strings.NewReader(csv))
	require.NoError(t, err)
	sum, err := svc.ImportBatch(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, Summary{Added: 1}, sum)

	b, err = p.Parse(strings.NewReader(csv))
	require.NoError(t, err)
	sum, err = svc.ImportBatch(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, Summary{Skipped: 1}, sum)

	all, err := s.List(ctx, store.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Miscellaneous", all[0].AISuggestedCategory, "cold start fallback is stored")
	assert.Equal(t, 0.0, all[0].ConfidenceScore)
}

func TestImport_DuplicateWithinBatch(t *testing.T) {
	svc, _ := newService(t)
	csv := "Booking Date,Partner Name,Amount (EUR)\n2024-01-05,Acme Corp,-42.00\n2024-01-05,Acme Corp,-42\n2024-01-06,Acme Corp,-42\n"
	b, err := NewMappedParser(nil, nil).Parse(strings.NewReader(csv))
	require.NoError(t, err)

	sum, err := svc.ImportBatch(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, Summary{Added: 2, Skipped: 1}, sum)
}

func TestImportDir(t *testing.T) {
	svc, _ := newService(t)
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(Dir(root), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(Dir(root), "jan.csv"), []byte(bankCSV), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(Dir(root), "broken.csv"), []byte("Partner Name\nx\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(Dir(root), "notes.txt"), []byte("ignore"), 0o644))

	sum, err := svc.ImportDir(context.Background(), root, NewMappedParser(nil, nil))
	assert.ErrorIs(t, err, ErrInvalidFile)
	assert.Equal(t, Summary{Added: 4, Rejected: 1}, sum)

	assert.FileExists(t, filepath.Join(root, "import", "processed", "jan.csv"))
	assert.FileExists(t, filepath.Join(Dir(root), "broken.csv"), "failed files stay for another try")

	files, err := Scan(root)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "broken.csv", files[0].Name)
}

func TestScan_NoDir(t *testing.T) {
	files, err := Scan(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, files)
}

func TestWatch(t *testing.T) {
	root := t.TempDir()
	w := NewWatcher(zerolog.Nop())
	w.Settle = 50 * time.Millisecond
	w.Tick = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan FileInfo, 1)
	done := make(chan error, 1)
	go func() {
		done <- w.Watch(ctx, root, func(fi FileInfo) {
			select {
			case got <- fi:
			default:
			}
		})
	}()

	require.Eventually(t, func() bool {
		_, err := os.Stat(Dir(root))
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(Dir(root), "ignored.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(Dir(root), "feb.csv"), []byte(bankCSV), 0o644))

	select {
	case fi := <-got:
		assert.Equal(t, "feb.csv", fi.Name)
		assert.Equal(t, int64(len(bankCSV)), fi.Size)
	case <-time.After(5 * time.Second):
		t.Fatal("no file reported")
	}

	cancel()
	assert.NoError(t, <-done)
}
