package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/garyjia/order-resolution/internal/application/port"
)

// FallbackFile keeps undeliverable notifications as JSON lines in one file
type FallbackFile struct {
	path   string
	logger *zap.Logger
	mu     sync.Mutex
}

// NewFallbackFile creates a fallback store writing to path
func NewFallbackFile(path string, logger *zap.Logger) *FallbackFile {
	return &FallbackFile{path: path, logger: logger}
}

// Path returns the file location
func (f *FallbackFile) Path() string {
	return f.path
}

// Append writes rec as one line, creating the file and its directory if needed
func (f *FallbackFile) Append(ctx context.Context, rec port.FallbackRecord) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode fallback record: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("failed to create fallback directory: %w", err)
	}

	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		f.logger.Error("Failed to open fallback file", zap.String("path", f.path), zap.Error(err))
		return fmt.Errorf("failed to open fallback file: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(append(line, '\n')); err != nil {
		f.logger.Error("Failed to write fallback record", zap.String("path", f.path), zap.Error(err))
		return fmt.Errorf("failed to write fallback record: %w", err)
	}
	return nil
}

// ReadAll returns every record in file order. A missing file has no records.
func (f *FallbackFile) ReadAll(ctx context.Context) ([]port.FallbackRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.Open(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open fallback file: %w", err)
	}
	defer file.Close()

	var records []port.FallbackRecord
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var rec port.FallbackRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode fallback line %d: %w", lineNo, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read fallback file: %w", err)
	}
	return records, nil
}

// Truncate empties the file after a successful replay
func (f *FallbackFile) Truncate(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Truncate(f.path, 0)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to truncate fallback file: %w", err)
	}
	return nil
}

var _ port.FallbackStore = (*FallbackFile)(nil)
