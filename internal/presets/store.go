// Package presets persists named brush/cycle configurations in a single
// JSON file mapping preset name to an ordered list of rows.
package presets

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/tturner/brushrig/internal/logging"
)

// NoBrush is the sentinel brush value meaning "row not configured".
const NoBrush = "none"

// Row is one brush + cycle count pair.
type Row struct {
	BrushName  string `json:"brushName" yaml:"brush"`
	CycleCount int    `json:"cycleCount" yaml:"cycles"`
}

// Valid reports whether the row names a brush and a positive cycle count.
func (r Row) Valid() bool {
	name := strings.TrimSpace(r.BrushName)
	return name != "" && name != NoBrush && r.CycleCount > 0
}

// FilterValid keeps only valid rows, preserving their order.
func FilterValid(rows []Row) []Row {
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if r.Valid() {
			out = append(out, r)
		}
	}
	return out
}

// Preset is a named, ordered list of rows.
type Preset struct {
	Name string
	Rows []Row
}

type presetMap = orderedmap.OrderedMap[string, []Row]

// Store is a file-backed preset mapping. Every call reads the file again,
// so edits made by another process are picked up. An absent or unparsable
// file is treated as an empty mapping; the next Save rewrites it.
type Store struct {
	mu     sync.Mutex
	path   string
	logger *logging.Logger
}

// NewStore returns a store backed by path.
func NewStore(path string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Store{path: path, logger: logger}
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// Names returns preset names in first-saved order.
func (s *Store) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.load()
	names := make([]string, 0, m.Len())
	for pair := m.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// Get returns the stored rows for name.
func (s *Store) Get(name string) ([]Row, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok := s.load().Get(name)
	if !ok || rows == nil {
		return nil, false
	}
	return append([]Row(nil), rows...), true
}

// All returns every preset in first-saved order.
func (s *Store) All() []Preset {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.load()
	out := make([]Preset, 0, m.Len())
	for pair := m.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, Preset{Name: pair.Key, Rows: append([]Row(nil), pair.Value...)})
	}
	return out
}

// Save stores rows under name, replacing any previous preset of that name
// entirely. An existing name keeps its position.
func (s *Store) Save(name string, rows []Row) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("preset name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.load()
	m.Set(name, append([]Row{}, rows...))

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal presets: %w", err)
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return err
	}
	s.logger.Verbose("preset %q saved (%d rows) to %s", name, len(rows), s.path)
	return nil
}

func (s *Store) load() *presetMap {
	m := orderedmap.New[string, []Row]()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Error("read preset store %s: %v", s.path, err)
		}
		return m
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return m
	}
	if err := json.Unmarshal(data, m); err != nil {
		s.logger.Error("preset store %s is unreadable, treating as empty: %v", s.path, err)
		return orderedmap.New[string, []Row]()
	}
	return m
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".presets-*.json")
	if err != nil {
		return fmt.Errorf("create temp preset file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write preset file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close preset file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace preset file: %w", err)
	}
	return nil
}
