package fsutil

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Exists reports whether something is at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// WriteJSON encodes v as 2-space indented UTF-8 JSON (non-ASCII and HTML
// characters are written as is) into a temporary file next to path, then
// renames it over path so readers never see a half written file.
// The parent directory is created if it doesn't exist.
func WriteJSON(path string, v any) error {
	dir := filepath.Dir(path)
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	err = encoder.Encode(v)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	err = tmp.Close()
	if err != nil {
		return err
	}
	err = os.Chmod(tmp.Name(), 0644)
	if err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}
