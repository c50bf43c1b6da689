package artifacts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

type WriterConfig struct {
	// Dir is where relative output paths are resolved.
	Dir string
	// Checksums writes a .sha256 sidecar for every artifact.
	Checksums bool
	// Progress shows a byte progress bar on stderr.
	Progress bool
}

// Writer writes output artifacts atomically and remembers what it wrote for
// the run manifest.
type Writer struct {
	logger *zap.Logger
	config *WriterConfig
	runId  uuid.UUID

	mu      sync.Mutex
	entries []ManifestEntry
}

func NewWriter(cfg *WriterConfig, l *zap.Logger) *Writer {
	return &Writer{
		logger: l,
		config: cfg,
		runId:  uuid.New(),
	}
}

func (w *Writer) RunId() uuid.UUID {
	return w.runId
}

func (w *Writer) resolve(path string) string {
	if filepath.IsAbs(path) || w.config.Dir == "" {
		return path
	}
	return filepath.Join(w.config.Dir, path)
}

// WriteJSON writes v as indented JSON to path.
func (w *Writer) WriteJSON(path string, v interface{}) (*ArtifactFile, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return w.WriteBytes(path, data)
}

// WriteCsv writes a slice of gocsv tagged rows to path.
func (w *Writer) WriteCsv(path string, rows interface{}) (*ArtifactFile, error) {
	data, err := marshalCsv(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return w.WriteBytes(path, data)
}

// WriteBytes writes data through a temporary file in the target directory and
// renames it into place, so readers never observe a partial artifact.
func (w *Writer) WriteBytes(path string, data []byte) (*ArtifactFile, error) {
	af := NewArtifactFile(w.resolve(path))
	if err := os.MkdirAll(af.Dir, 0755); err != nil {
		return nil, fmt.Errorf("error creating output directory: %w", err)
	}

	tmp, err := os.CreateTemp(af.Dir, "."+af.FileName+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("error creating temporary file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// no-op once renamed
		_ = os.Remove(tmpName)
	}()

	var out io.Writer = tmp
	if w.config.Progress {
		bar := progressbar.DefaultBytes(int64(len(data)), fmt.Sprintf("writing %s", af.FileName))
		out = io.MultiWriter(tmp, bar)
		defer fmt.Fprintln(os.Stderr)
	}
	if _, err := io.Copy(out, bytes.NewReader(data)); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("error writing %s: %w", af.FileName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("error syncing %s: %w", af.FileName, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("error closing %s: %w", af.FileName, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return nil, fmt.Errorf("error setting permissions on %s: %w", af.FileName, err)
	}
	if err := os.Rename(tmpName, af.FullPath()); err != nil {
		return nil, fmt.Errorf("error moving %s into place: %w", af.FileName, err)
	}

	entry := ManifestEntry{File: af.FileName, Bytes: uint64(len(data))}
	if w.config.Checksums {
		sum, err := af.GenerateAndSaveHash()
		if err != nil {
			return nil, err
		}
		entry.Sha256 = sum
	}

	w.mu.Lock()
	w.entries = append(w.entries, entry)
	w.mu.Unlock()

	w.logger.Sugar().Infow("Wrote artifact",
		zap.String("path", af.FullPath()),
		zap.Int("bytes", len(data)),
	)
	return af, nil
}

// Entries returns the artifacts written so far in write order.
func (w *Writer) Entries() []ManifestEntry {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]ManifestEntry, len(w.entries))
	copy(out, w.entries)
	return out
}
