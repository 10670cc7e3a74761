package utils

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrInvalidFileName is returned for names that would escape a run directory.
var ErrInvalidFileName = errors.New("invalid file name")

// OutputManager handles output file organization and path management
type OutputManager struct {
	BaseOutputDir string
	APIPrefix     string
}

// NewOutputManager creates a new output manager
func NewOutputManager(baseOutputDir, apiPrefix string) *OutputManager {
	return &OutputManager{
		BaseOutputDir: baseOutputDir,
		APIPrefix:     strings.TrimRight(apiPrefix, "/"),
	}
}

// CreateRunOutputDir creates the directory holding one run's artifacts
func (om *OutputManager) CreateRunOutputDir(runID string) (string, error) {
	if err := checkName(runID); err != nil {
		return "", err
	}
	runDir := filepath.Join(om.BaseOutputDir, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create run output directory: %w", err)
	}
	return runDir, nil
}

// WriteArtifact streams an artifact into the run directory and returns its
// path relative to BaseOutputDir, always with forward slashes.
func (om *OutputManager) WriteArtifact(runID, fileName string, write func(io.Writer) error) (string, error) {
	if err := checkName(fileName); err != nil {
		return "", err
	}
	runDir, err := om.CreateRunOutputDir(runID)
	if err != nil {
		return "", err
	}
	f, err := os.Create(filepath.Join(runDir, fileName))
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", fileName, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write %s: %w", fileName, err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path.Join(runID, fileName), nil
}

// ResolveArtifact returns the on-disk path of an existing artifact.
func (om *OutputManager) ResolveArtifact(runID, fileName string) (string, error) {
	if err := checkName(runID); err != nil {
		return "", err
	}
	if err := checkName(fileName); err != nil {
		return "", err
	}
	full := filepath.Join(om.BaseOutputDir, runID, fileName)
	info, err := os.Stat(full)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", ErrInvalidFileName
	}
	return full, nil
}

// GetDownloadURL generates a download URL for a file
func (om *OutputManager) GetDownloadURL(runID, fileName string) string {
	return fmt.Sprintf("%s/download/%s/%s", om.APIPrefix, runID, filepath.Base(fileName))
}

// GetContentType determines the content type based on extension
func (om *OutputManager) GetContentType(fileName string) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv":
		return "text/csv; charset=utf-8"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

// EnsureOutputDirExists ensures the base output directory exists
func (om *OutputManager) EnsureOutputDirExists() error {
	return os.MkdirAll(om.BaseOutputDir, 0755)
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidFileName, name)
	}
	return nil
}
