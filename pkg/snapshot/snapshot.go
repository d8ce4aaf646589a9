// Package snapshot reads and writes whole-document JSON state files. Both the
// usage ledger and the conversation store persist as a single document that is
// loaded once at startup and rewritten in full on mutation.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Load reads the JSON document at path into v. A missing file is not an
// error: the caller starts empty. A present but unreadable or malformed file
// is reported so the operator can decide whether to discard it.
func Load(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read snapshot %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse snapshot %s: %w", path, err)
	}
	return nil
}

// Store writes v as the full JSON document at path. The write goes through a
// temp file and rename so a crash mid-write leaves the previous snapshot
// intact rather than a torn one.
func Store(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", path, err)
	}
	return StoreBytes(path, data)
}

// StoreBytes writes pre-encoded snapshot data at path via temp file + rename.
func StoreBytes(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create snapshot temp: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write snapshot %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close snapshot temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace snapshot %s: %w", path, err)
	}
	return nil
}
