package importer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/spendsort/spendsort/internal/dedup"
	"github.com/spendsort/spendsort/internal/model"
)

// ErrInvalidFile is returned when a CSV is too broken to import at all.
var ErrInvalidFile = errors.New("invalid CSV file")

// Batch is the result of parsing one CSV. Rows that could not be parsed are
// counted in Rejected instead of failing the file.
type Batch struct {
	Transactions []*model.Transaction
	Rejected     int
}

// Parser converts a bank CSV file into transactions with their dedup hash
// set.
type Parser interface {
	Parse(r io.Reader) (*Batch, error)
	Format() string
}

// Registry holds named parsers.
type Registry struct {
	parsers map[string]Parser
}

// FileInfo describes a CSV file in the import directory.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser. Panics on duplicate format.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Format())
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser format: " + key)
	}
	r.parsers[key] = p
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format string) Parser {
	return r.parsers[strings.ToLower(format)]
}

// DefaultRegistry returns a registry with all built-in parsers. columns and
// dateFormats configure the mapped parser; nil means its defaults.
func DefaultRegistry(columns map[string]string, dateFormats []string) *Registry {
	r := NewRegistry()
	r.Register(NewMappedParser(columns, dateFormats))
	r.Register(&ChaseParser{})
	return r
}

const (
	importDir    = "import"
	processedDir = "import/processed"
)

// Dir returns <root>/import.
func Dir(root string) string {
	return filepath.Join(root, importDir)
}

// Scan returns CSV files in <root>/import/.
func Scan(root string) ([]FileInfo, error) {
	dir := Dir(root)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() || !isCSV(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	return files, nil
}

// MarkProcessed moves a file from import/ to import/processed/.
func MarkProcessed(root, fileName string) error {
	src := filepath.Join(root, importDir, fileName)
	dstDir := filepath.Join(root, processedDir)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	dst := filepath.Join(dstDir, fileName)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return nil
}

func isCSV(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".csv")
}

// newTransaction builds a transaction from parsed fields and fills in the
// derived ones.
func newTransaction(date time.Time, desc string, amount decimal.Decimal, original string) *model.Transaction {
	t := &model.Transaction{
		Date:             model.CalendarDay(date),
		Description:      desc,
		Amount:           amount,
		OriginalCategory: original,
	}
	if t.OriginalCategory == "" {
		t.OriginalCategory = model.Direction(amount)
	}
	t.TransactionHash = dedup.ForTransaction(*t)
	return t
}
