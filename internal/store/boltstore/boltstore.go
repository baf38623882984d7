// Package boltstore keeps transactions in an embedded bolt file. Values are
// gob-encoded; a hash index bucket enforces one transaction per dedup hash.
package boltstore

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/boltdb/bolt"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/spendsort/spendsort/internal/model"
	"github.com/spendsort/spendsort/internal/store"
)

var (
	txnBucket   = []byte("transactions")
	hashBucket  = []byte("hashes")
	auditBucket = []byte("audit")
)

// Store is a bolt-backed store.Store.
type Store struct {
	db  *bolt.DB
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

// Open opens or creates the bolt file at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "creating data dir")
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening bolt db at %s", path)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{txnBucket, hashBucket, auditBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return errors.Wrapf(err, "creating bucket %s", name)
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the file lock.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert stores t unless its hash is already present. It assigns ID and
// timestamps on t.
func (s *Store) Insert(_ context.Context, t *model.Transaction) (bool, error) {
	if t.TransactionHash == "" {
		return false, errors.New("insert: transaction has no hash")
	}
	added := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		hashes := tx.Bucket(hashBucket)
		if hashes.Get([]byte(t.TransactionHash)) != nil {
			return nil
		}
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		now := s.now().UTC()
		t.CreatedAt, t.UpdatedAt = now, now
		if err := putTxn(tx, t); err != nil {
			return err
		}
		added = true
		return hashes.Put([]byte(t.TransactionHash), []byte(t.ID))
	})
	if err != nil {
		return false, errors.Wrap(err, "inserting transaction")
	}
	return added, nil
}

// Exists reports whether a transaction with hash is stored.
func (s *Store) Exists(_ context.Context, hash string) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(hashBucket).Get([]byte(hash)) != nil
		return nil
	})
	return found, errors.Wrap(err, "checking hash")
}

// Get returns the transaction with id.
func (s *Store) Get(_ context.Context, id string) (*model.Transaction, error) {
	var t *model.Transaction
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		t, err = getTxn(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// List returns matching transactions ordered by date.
func (s *Store) List(_ context.Context, f store.Filter) ([]*model.Transaction, error) {
	var out []*model.Transaction
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(txnBucket).ForEach(func(k, v []byte) error {
			t, err := decodeTxn(v)
			if err != nil {
				return errors.Wrapf(err, "decoding transaction %s", k)
			}
			if f.Match(t) {
				out = append(out, t)
			}
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "listing transactions")
	}
	store.SortTransactions(out)
	return out, nil
}

// UpdatePredictions writes AISuggestedCategory and ConfidenceScore for each
// transaction. Other fields in the store are left as they are.
func (s *Store) UpdatePredictions(_ context.Context, txns []*model.Transaction) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		now := s.now().UTC()
		for _, in := range txns {
			t, err := getTxn(tx, in.ID)
			if err != nil {
				return err
			}
			t.AISuggestedCategory = in.AISuggestedCategory
			t.ConfidenceScore = in.ConfidenceScore
			t.UpdatedAt = now
			if err := putTxn(tx, t); err != nil {
				return err
			}
			in.UpdatedAt = now
		}
		return nil
	})
	return errors.Wrap(err, "updating predictions")
}

// SetVerifiedCategory records a user's category and appends the matching
// audit entry in the same write.
func (s *Store) SetVerifiedCategory(_ context.Context, id, category string) (*model.Transaction, error) {
	var out *model.Transaction
	err := s.db.Update(func(tx *bolt.Tx) error {
		t, err := getTxn(tx, id)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		entry := model.AuditEntry{
			ID:            uuid.NewString(),
			TransactionID: id,
			OldCategory:   store.PreviousCategory(t),
			NewCategory:   category,
			Timestamp:     now,
		}
		t.UserVerifiedCategory = category
		t.UpdatedAt = now
		if err := putTxn(tx, t); err != nil {
			return err
		}
		if err := putAudit(tx, entry); err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "setting verified category")
	}
	return out, nil
}

// AuditTrail returns the entries for one transaction, oldest first.
func (s *Store) AuditTrail(_ context.Context, id string) ([]model.AuditEntry, error) {
	var out []model.AuditEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(auditBucket).Cursor()
		prefix := []byte(id + "/")
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var e model.AuditEntry
			if err := gob.NewDecoder(bytes.NewReader(v)).Decode(&e); err != nil {
				return errors.Wrapf(err, "decoding audit entry %s", k)
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "reading audit trail")
	}
	return out, nil
}

// AllAudit returns every audit entry, oldest first.
func (s *Store) AllAudit(_ context.Context) ([]model.AuditEntry, error) {
	var out []model.AuditEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(auditBucket).ForEach(func(k, v []byte) error {
			var e model.AuditEntry
			if err := gob.NewDecoder(bytes.NewReader(v)).Decode(&e); err != nil {
				return errors.Wrapf(err, "decoding audit entry %s", k)
			}
			out = append(out, e)
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "reading audit log")
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// DeleteRange removes transactions dated within [from, to], their hash index
// entries and their audit trails.
func (s *Store) DeleteRange(_ context.Context, from, to time.Time) (int, error) {
	f := store.Filter{From: from, To: to}
	n := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		var doomed []*model.Transaction
		if err := tx.Bucket(txnBucket).ForEach(func(k, v []byte) error {
			t, err := decodeTxn(v)
			if err != nil {
				return errors.Wrapf(err, "decoding transaction %s", k)
			}
			if f.Match(t) {
				doomed = append(doomed, t)
			}
			return nil
		}); err != nil {
			return err
		}
		for _, t := range doomed {
			if err := deleteTxn(tx, t); err != nil {
				return err
			}
		}
		n = len(doomed)
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "deleting transactions")
	}
	return n, nil
}

// Replace empties every bucket and writes txns and audit in one update.
// Audit entries keep their input order within each transaction.
func (s *Store) Replace(_ context.Context, txns []*model.Transaction, audit []model.AuditEntry) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{txnBucket, hashBucket, auditBucket} {
			if err := tx.DeleteBucket(name); err != nil && err != bolt.ErrBucketNotFound {
				return errors.Wrapf(err, "dropping bucket %s", name)
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return errors.Wrapf(err, "creating bucket %s", name)
			}
		}
		hashes := tx.Bucket(hashBucket)
		for _, t := range txns {
			if t.ID == "" || t.TransactionHash == "" {
				return errors.New("replace: transaction needs an id and a hash")
			}
			if hashes.Get([]byte(t.TransactionHash)) != nil {
				return errors.Errorf("replace: duplicate hash %s", t.TransactionHash)
			}
			if err := putTxn(tx, t); err != nil {
				return err
			}
			if err := hashes.Put([]byte(t.TransactionHash), []byte(t.ID)); err != nil {
				return err
			}
		}
		for _, e := range audit {
			if err := putAudit(tx, e); err != nil {
				return err
			}
		}
		return nil
	})
	return errors.Wrap(err, "replacing contents")
}

// Snapshot writes a consistent copy of the whole bolt file to w.
func (s *Store) Snapshot(w io.Writer) (int64, error) {
	var n int64
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		n, err = tx.WriteTo(w)
		return err
	})
	if err != nil {
		return n, errors.Wrap(err, "writing snapshot")
	}
	return n, nil
}

func deleteTxn(tx *bolt.Tx, t *model.Transaction) error {
	if err := tx.Bucket(txnBucket).Delete([]byte(t.ID)); err != nil {
		return err
	}
	if err := tx.Bucket(hashBucket).Delete([]byte(t.TransactionHash)); err != nil {
		return err
	}
	audit := tx.Bucket(auditBucket)
	prefix := []byte(t.ID + "/")
	var keys [][]byte
	c := audit.Cursor()
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}
	for _, k := range keys {
		if err := audit.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func getTxn(tx *bolt.Tx, id string) (*model.Transaction, error) {
	v := tx.Bucket(txnBucket).Get([]byte(id))
	if v == nil {
		return nil, errors.WithMessage(store.ErrNotFound, id)
	}
	t, err := decodeTxn(v)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding transaction %s", id)
	}
	return t, nil
}

func putTxn(tx *bolt.Tx, t *model.Transaction) error {
	var val bytes.Buffer
	if err := gob.NewEncoder(&val).Encode(t); err != nil {
		return errors.Wrapf(err, "encoding transaction %s", t.ID)
	}
	return tx.Bucket(txnBucket).Put([]byte(t.ID), val.Bytes())
}

func decodeTxn(v []byte) (*model.Transaction, error) {
	var t model.Transaction
	if err := gob.NewDecoder(bytes.NewReader(v)).Decode(&t); err != nil {
		return nil, err
	}
	return &t, nil
}

// putAudit keys entries by transaction, then insertion sequence, so a
// prefix scan yields one transaction's trail in order.
func putAudit(tx *bolt.Tx, e model.AuditEntry) error {
	var val bytes.Buffer
	if err := gob.NewEncoder(&val).Encode(e); err != nil {
		return errors.Wrap(err, "encoding audit entry")
	}
	b := tx.Bucket(auditBucket)
	seq, err := b.NextSequence()
	if err != nil {
		return errors.Wrap(err, "allocating audit sequence")
	}
	key := fmt.Sprintf("%s/%020d", e.TransactionID, seq)
	return b.Put([]byte(key), val.Bytes())
}
