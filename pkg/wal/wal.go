// Package wal is an append-only JSON log. The in-memory ledger store writes
// one committed change-set per line and replays the file on startup.
package wal

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"sync"
)

// FileModeOwnerRW keeps the log at rw-r--r--.
const FileModeOwnerRW fs.FileMode = 0644

type WAL struct {
	file *os.File
	mu   sync.Mutex
}

// Open opens or creates the log file at path in append mode.
func Open(path string) (*WAL, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, FileModeOwnerRW)
	if err != nil {
		return nil, err
	}
	return &WAL{file: file}, nil
}

// Append encodes v as one JSON line and syncs it to disk before returning.
func (w *WAL) Append(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := json.NewEncoder(w.file).Encode(v); err != nil {
		return err
	}
	return w.file.Sync()
}

// ReadAll streams every record to callback, oldest first, without loading the
// whole file into memory.
func (w *WAL) ReadAll(callback func(raw []byte) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return err
	}

	decoder := json.NewDecoder(w.file)
	for {
		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := callback(raw); err != nil {
			return err
		}
	}
}

// Close closes the underlying file.
func (w *WAL) Close() error {
	return w.file.Close()
}
