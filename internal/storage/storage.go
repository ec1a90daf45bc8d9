package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/bdougie/mira/internal/models"
)

// DefaultBatchSize is the number of results buffered before a file write.
const DefaultBatchSize = 10

// ResultsFile is the file name used under each session directory.
const ResultsFile = "analysis_results.json"

// Storage defines the interface for storing analysis results
type Storage interface {
	// AddResult adds a single analysis result
	AddResult(ctx context.Context, result models.AnalysisResult) error

	// Flush ensures all pending results are saved
	Flush() error

	// Close flushes and releases resources.
	Close() error
}

// Lister reads back stored results, most recent first.
type Lister interface {
	List(ctx context.Context, session string, limit int) ([]models.AnalysisResult, error)
}

// FileStorage batches results into outputDir/<session>/analysis_results.json.
type FileStorage struct {
	mu        sync.Mutex
	results   []models.AnalysisResult
	outputDir string
	session   string
	batchSize int
	logger    *slog.Logger
}

var (
	_ Storage = (*FileStorage)(nil)
	_ Lister  = (*FileStorage)(nil)
)

// NewFileStorage creates a JSON file store for one session.
func NewFileStorage(outputDir, session string, batchSize int, logger *slog.Logger) *FileStorage {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStorage{
		outputDir: outputDir,
		session:   session,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Path returns the results file for session.
func (s *FileStorage) Path(session string) string {
	return filepath.Join(s.outputDir, session, ResultsFile)
}

// AddResult adds a result to the batch and flushes if the batch is full
func (s *FileStorage) AddResult(ctx context.Context, result models.AnalysisResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)

	if len(s.results) >= s.batchSize {
		if err := s.flush(); err != nil {
			s.logger.Error("flushing results", "error", err)
			return err
		}
	}
	return nil
}

// Flush writes all pending results to disk
func (s *FileStorage) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flush()
}

func (s *FileStorage) Close() error {
	return s.Flush()
}

func (s *FileStorage) flush() error {
	if len(s.results) == 0 {
		return nil
	}

	path := s.Path(s.session)
	existing, err := readResults(path)
	if err != nil {
		return err
	}
	all := append(existing, s.results...)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for results: %w", err)
	}

	// Replace atomically.
	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(file).Encode(all); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode results: %w", err)
	}
	if err := file.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return err
	}

	s.results = nil
	return nil
}

// List reads flushed results for session, newest first.
func (s *FileStorage) List(ctx context.Context, session string, limit int) ([]models.AnalysisResult, error) {
	results, err := readResults(s.Path(session))
	if err != nil {
		return nil, err
	}
	out := make([]models.AnalysisResult, 0, len(results))
	for i := len(results) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, results[i])
	}
	return out, nil
}

func readResults(path string) ([]models.AnalysisResult, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read results file: %w", err)
	}
	var results []models.AnalysisResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("failed to unmarshal existing results: %w", err)
	}
	return results, nil
}

// Multi fans results out to several stores. Every store sees every call;
// errors are joined.
type Multi []Storage

func (m Multi) AddResult(ctx context.Context, result models.AnalysisResult) error {
	var errs []error
	for _, s := range m {
		if err := s.AddResult(ctx, result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Flush() error {
	var errs []error
	for _, s := range m {
		if err := s.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
