package chat

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// saveDocument writes doc to path atomically: write to a temp file in the
// same directory, then rename over the destination. Rename is atomic on a
// POSIX filesystem, so a reader never observes a partially-written
// document (spec.md §4.1, §5).
func saveDocument(path string, doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".store-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// loadDocument reads and parses path. Missing keys are tolerated: they keep
// the empty maps newDocument starts with, and a key set to an explicit null
// leaves a nil map that canonicalize replaces before first use.
func loadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc := newDocument()
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, err
	}
	return doc, nil
}
