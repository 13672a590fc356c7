package harness

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ScenarioNotFoundError is returned when a scenario directory doesn't exist.
type ScenarioNotFoundError struct {
	Path string
}

// Error implements the error interface.
func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf("scenario directory %q does not exist", e.Path)
}

// FindScenarios returns the YAML files under dir, sorted by path. A
// non-empty filter is a glob matched against the file name without its
// extension. Files under a golden/ directory are skipped.
func FindScenarios(dir, filter string) ([]string, error) {
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return nil, &ScenarioNotFoundError{Path: dir}
		}
		return nil, err
	}
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "golden" {
				return filepath.SkipDir
			}
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			name := strings.TrimSuffix(d.Name(), ext)
			if ok, _ := filepath.Match(filter, name); !ok {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

// GoldenPath returns the golden file that belongs to a scenario file:
// golden/<name>.golden next to it.
func GoldenPath(scenarioFile string) string {
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(scenarioFile), "golden", name+".golden")
}

// GoldenStatus describes how a result compared with its golden file.
type GoldenStatus string

const (
	GoldenMissing  GoldenStatus = "missing"
	GoldenMatch    GoldenStatus = "match"
	GoldenMismatch GoldenStatus = "mismatch"
	GoldenUpdated  GoldenStatus = "updated"
)

// CompareGolden checks result against the golden file for scenarioFile.
// With update set the golden file is rewritten instead.
func CompareGolden(scenarioFile, name string, result *Result, update bool) (GoldenStatus, error) {
	data, err := Snapshot(name, result)
	if err != nil {
		return "", fmt.Errorf("failed to marshal trace: %w", err)
	}
	path := GoldenPath(scenarioFile)

	if update {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", fmt.Errorf("failed to create golden directory: %w", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return "", fmt.Errorf("failed to write golden file: %w", err)
		}
		return GoldenUpdated, nil
	}

	want, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return GoldenMissing, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read golden file: %w", err)
	}
	if !bytes.Equal(want, data) {
		return GoldenMismatch, nil
	}
	return GoldenMatch, nil
}
