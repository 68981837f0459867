package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Store manages persistence of compile and run records and saved logs.
type Store struct {
	root  string
	limit int
	mu    sync.Mutex
}

// New creates a Store rooted at the given directory (typically .vboard/).
// Each history file keeps at most limit records; limit <= 0 keeps all.
func New(root string, limit int) *Store {
	return &Store{root: root, limit: limit}
}

func (s *Store) historyDir() string {
	return filepath.Join(s.root, "history")
}

func (s *Store) logsDir() string {
	return filepath.Join(s.root, "logs")
}

// AddCompile appends a compile record.
func (s *Store) AddCompile(r CompileRecord) error {
	return s.appendRecord("compiles.json", r)
}

// AddRun appends a run record.
func (s *Store) AddRun(r RunRecord) error {
	return s.appendRecord("runs.json", r)
}

// Compiles returns all compile records, oldest first.
func (s *Store) Compiles() ([]CompileRecord, error) {
	var records []CompileRecord
	err := s.loadRecords("compiles.json", &records)
	return records, err
}

// Runs returns all run records, oldest first.
func (s *Store) Runs() ([]RunRecord, error) {
	var records []RunRecord
	err := s.loadRecords("runs.json", &records)
	return records, err
}

// LogsDir returns the path to the logs directory, creating it if needed.
func (s *Store) LogsDir() (string, error) {
	dir := s.logsDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// SaveLog writes data to a timestamped file in the logs directory and
// returns its path.
func (s *Store) SaveLog(kind string, at time.Time, data []byte) (string, error) {
	dir, err := s.LogsDir()
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, kind+"-"+at.Format("20060102-150405.000")+".log")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (s *Store) appendRecord(filename string, record any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.historyDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	path := filepath.Join(dir, filename)

	// Read existing records
	var records []json.RawMessage
	if data, err := os.ReadFile(path); err == nil {
		json.Unmarshal(data, &records)
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}
	records = append(records, raw)
	if s.limit > 0 && len(records) > s.limit {
		records = records[len(records)-s.limit:]
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (s *Store) loadRecords(filename string, dest any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.historyDir(), filename)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, dest)
}
