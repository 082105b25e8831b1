// Package export renders the crawl result to a JSON snapshot on disk.
package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cfpbot/internal/cfp"
	logx "cfpbot/pkg/logx"
)

// Snapshot is the on-disk document shape.
type Snapshot struct {
	GeneratedAt string      `json:"generated_at"`
	Count       int         `json:"count"`
	Entries     []cfp.Entry `json:"entries"`
}

// Writer writes entry snapshots to a fixed path, atomically, and only
// when the entry set actually changed since the last export.
type Writer struct {
	Path   string
	Pretty bool

	log logx.Logger
	now func() time.Time
}

func NewWriter(path string, pretty bool, log logx.Logger) (*Writer, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("export path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Writer{Path: path, Pretty: pretty, log: log, now: time.Now}, nil
}

// Write persists entries to w.Path. It reports whether the file content
// changed. The generated_at stamp is excluded from the comparison, so a
// run that produced the same entries leaves the file untouched.
func (w *Writer) Write(entries []cfp.Entry) (bool, error) {
	if entries == nil {
		entries = []cfp.Entry{}
	}
	next, err := w.marshal(Snapshot{
		GeneratedAt: w.now().UTC().Format(time.RFC3339),
		Count:       len(entries),
		Entries:     entries,
	})
	if err != nil {
		return false, err
	}

	prev, err := os.ReadFile(w.Path)
	if err == nil && sameEntries(prev, next) {
		w.log.Debug("export unchanged", logx.String("path", w.Path))
		return false, nil
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		w.log.Warn("export: cannot read previous snapshot", logx.Err(err))
	}

	if err := writeAtomic(w.Path, next); err != nil {
		return false, err
	}
	w.log.Info("export written",
		logx.String("path", w.Path),
		logx.Int("count", len(entries)))
	return true, nil
}

func (w *Writer) marshal(s Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if w.Pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// sameEntries compares two serialized snapshots ignoring generated_at.
func sameEntries(a, b []byte) bool {
	var sa, sb Snapshot
	if err := json.Unmarshal(a, &sa); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &sb); err != nil {
		return false
	}
	if sa.Count != sb.Count || len(sa.Entries) != len(sb.Entries) {
		return false
	}
	ea, err := json.Marshal(sa.Entries)
	if err != nil {
		return false
	}
	eb, err := json.Marshal(sb.Entries)
	if err != nil {
		return false
	}
	return bytes.Equal(ea, eb)
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".export-*.tmp")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return err
	}
	return os.Rename(name, path)
}
