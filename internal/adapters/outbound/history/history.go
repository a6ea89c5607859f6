package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/layerforge/layerforge/internal/domain"
)

const (
	runsDir   = ".layerforge/runs"
	indexFile = "index.json"
)

// FileHistory implements domain.RunHistory using JSON file storage: one file
// per run report plus an index of summaries, oldest first.
type FileHistory struct {
	mu sync.Mutex
}

func New() *FileHistory {
	return &FileHistory{}
}

func (h *FileHistory) Save(projectPath string, report *domain.RunReport) error {
	if report == nil || report.ID == "" {
		return fmt.Errorf("%w: run report needs an id", domain.ErrValue)
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	dir := filepath.Join(projectPath, runsDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, report.ID+".json"), report); err != nil {
		return fmt.Errorf("writing run %s: %w", report.ID, err)
	}

	entries, err := h.Load(projectPath)
	if err != nil {
		return err
	}
	entries = append(entries, report.Summary())
	return writeJSON(filepath.Join(dir, indexFile), entries)
}

func (h *FileHistory) Load(projectPath string) ([]domain.RunSummary, error) {
	var entries []domain.RunSummary
	if err := readJSON(filepath.Join(projectPath, runsDir, indexFile), &entries); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading run index: %w", err)
	}
	return entries, nil
}

// Get returns the full report of one run.
func (h *FileHistory) Get(projectPath, id string) (*domain.RunReport, error) {
	if id == "" || filepath.Base(id) != id {
		return nil, fmt.Errorf("%w: run id %q", domain.ErrValue, id)
	}
	var report domain.RunReport
	if err := readJSON(filepath.Join(projectPath, runsDir, id+".json"), &report); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("run %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("reading run %s: %w", id, err)
	}
	return &report, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
