// Package artifact persists the trained model: the fitted feature extractor
// and the fitted classifier. There is one current model and no history; a
// save replaces whatever was there.
package artifact

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spendsort/spendsort/internal/forest"
	"github.com/spendsort/spendsort/internal/textfeat"
)

// ErrNoModel means no model has been trained yet. It is the cold-start
// state, not a failure.
var ErrNoModel = errors.New("no trained model")

const (
	// VectorizerFile holds the fitted vocabulary and IDF weights.
	VectorizerFile = "vectorizer.gob"
	// ClassifierFile holds the fitted trees and class list.
	ClassifierFile = "classifier.gob"
)

// Model pairs the extractor with the classifier trained on its output.
type Model struct {
	Vectorizer *textfeat.Vectorizer
	Forest     *forest.Forest
	TrainedAt  time.Time // set on Load from the classifier file
}

// Store loads and saves the current Model.
type Store interface {
	Load() (*Model, error)
	Save(m *Model) error
	Exists() bool
}

// FileStore keeps the two artifacts as gob files in Dir. It does no locking:
// callers must not retrain while another process is categorizing.
type FileStore struct {
	Dir string
}

// NewFileStore returns a FileStore rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

// Exists reports whether both artifact files are present.
func (s *FileStore) Exists() bool {
	for _, name := range []string{VectorizerFile, ClassifierFile} {
		if _, err := os.Stat(filepath.Join(s.Dir, name)); err != nil {
			return false
		}
	}
	return true
}

// Load reads both artifacts. Missing files give ErrNoModel; files that do
// not decode are a hard error.
func (s *FileStore) Load() (*Model, error) {
	var vec textfeat.Vectorizer
	if err := s.read(VectorizerFile, &vec); err != nil {
		return nil, err
	}
	var clf forest.Forest
	if err := s.read(ClassifierFile, &clf); err != nil {
		return nil, err
	}
	trainedAt, err := s.ModTime()
	if err != nil {
		return nil, err
	}
	return &Model{Vectorizer: &vec, Forest: &clf, TrainedAt: trainedAt}, nil
}

// Save overwrites both artifacts.
func (s *FileStore) Save(m *Model) error {
	if m == nil || m.Vectorizer == nil || m.Forest == nil {
		return errors.New("saving model: incomplete model")
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("creating model dir: %w", err)
	}
	if err := s.write(VectorizerFile, m.Vectorizer); err != nil {
		return err
	}
	return s.write(ClassifierFile, m.Forest)
}

// ModTime returns when the classifier artifact was last written.
func (s *FileStore) ModTime() (time.Time, error) {
	info, err := os.Stat(filepath.Join(s.Dir, ClassifierFile))
	if errors.Is(err, fs.ErrNotExist) {
		return time.Time{}, ErrNoModel
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("stat classifier: %w", err)
	}
	return info.ModTime(), nil
}

func (s *FileStore) read(name string, v any) error {
	f, err := os.Open(filepath.Join(s.Dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNoModel
	}
	if err != nil {
		return fmt.Errorf("opening %s: %w", name, err)
	}
	defer f.Close()

	if err := gob.NewDecoder(f).Decode(v); err != nil {
		return fmt.Errorf("decoding %s: %w", name, err)
	}
	return nil
}

// write encodes v to a temp file in Dir and renames it over name.
func (s *FileStore) write(name string, v any) error {
	tmp, err := os.CreateTemp(s.Dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp for %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(v); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.Dir, name)); err != nil {
		return fmt.Errorf("replacing %s: %w", name, err)
	}
	return nil
}
