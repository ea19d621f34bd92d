// File: telemetry/file.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package telemetry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileProvider re-reads a snapshot document from disk on every call.
// Files ending in .json are parsed as JSON, anything else as YAML.
// The collector is expected to replace the file atomically (write + rename).
type FileProvider struct {
	path string
	now  func() time.Time
}

// NewFileProvider creates a provider reading path.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path, now: time.Now}
}

// GetSnapshot reads and decodes the file. An unstamped document gets the read time.
func (p *FileProvider) GetSnapshot(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoSnapshot, p.path)
		}
		return nil, fmt.Errorf("read snapshot file: %w", err)
	}

	var snap *Snapshot
	if strings.EqualFold(filepath.Ext(p.path), ".json") {
		snap, err = DecodeJSON(data)
	} else {
		snap, err = DecodeYAML(data)
	}
	if err != nil {
		return nil, err
	}
	if snap.Timestamp.IsZero() {
		snap.Timestamp = p.now()
	}
	return snap, nil
}
