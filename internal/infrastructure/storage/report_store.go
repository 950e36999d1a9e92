package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// ReportStore writes generated reports below a base directory
type ReportStore struct {
	baseDir string
	logger  *zap.Logger
}

// NewReportStore creates a report store rooted at baseDir
func NewReportStore(baseDir string, logger *zap.Logger) *ReportStore {
	return &ReportStore{baseDir: baseDir, logger: logger}
}

// Save writes content to name relative to the base directory and returns the full path
func (s *ReportStore) Save(ctx context.Context, name string, content []byte) (string, error) {
	fullPath := filepath.Join(s.baseDir, name)
	if err := s.validatePath(fullPath); err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		s.logger.Error("Failed to create report directory", zap.String("path", fullPath), zap.Error(err))
		return "", fmt.Errorf("failed to create directories: %w", err)
	}

	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		s.logger.Error("Failed to write report", zap.String("path", fullPath), zap.Error(err))
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	s.logger.Info("Report saved", zap.String("path", fullPath), zap.Int("size", len(content)))
	return fullPath, nil
}

// validatePath rejects names that escape the base directory
func (s *ReportStore) validatePath(fullPath string) error {
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base path: %w", err)
	}
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return fmt.Errorf("path escapes report directory: %s", fullPath)
	}
	return nil
}
