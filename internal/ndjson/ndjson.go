package ndjson

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
)

const (
	DefaultPageLimit = 200
	MaxPageLimit     = 2000
)

// RecordsPath is the registration audit log under dataDir.
func RecordsPath(dataDir string) string {
	return filepath.Join(dataDir, "registrations.ndjson")
}

type Page[T any] struct {
	Items      []T   `json:"items"`
	NextCursor int64 `json:"nextCursor"`
}

func ReadFromOffset[T any](path string, cursor int64, limit int) (Page[T], error) {
	return ReadFromOffsetFiltered[T](path, cursor, limit, nil)
}

// ReadFromOffsetFiltered reads up to limit decoded lines starting at the byte
// offset cursor. keep == nil keeps every line.
func ReadFromOffsetFiltered[T any](path string, cursor int64, limit int, keep func(T) bool) (Page[T], error) {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	if cursor < 0 {
		cursor = 0
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Page[T]{Items: []T{}, NextCursor: cursor}, nil
		}
		return Page[T]{}, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return Page[T]{}, err
	}
	if cursor > st.Size() {
		cursor = st.Size()
	}

	atLineStart := cursor == 0
	if cursor > 0 {
		if _, err := f.Seek(cursor-1, io.SeekStart); err != nil {
			return Page[T]{}, err
		}
		var prev [1]byte
		if _, err := f.Read(prev[:]); err != nil {
			return Page[T]{}, err
		}
		atLineStart = prev[0] == '\n'
	}

	if _, err := f.Seek(cursor, io.SeekStart); err != nil {
		return Page[T]{}, err
	}

	r := bufio.NewReader(f)
	items := []T{}
	cur := cursor

	// Cursor landed mid-line: skip to the next record boundary.
	if !atLineStart {
		junk, err := r.ReadBytes('\n')
		cur += int64(len(junk))
		if errors.Is(err, io.EOF) {
			return Page[T]{Items: items, NextCursor: cur}, nil
		}
		if err != nil {
			return Page[T]{}, err
		}
	}

	for len(items) < limit {
		line, err := r.ReadBytes('\n')
		// A trailing line without '\n' may still be mid-write.
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Page[T]{}, err
		}
		cur += int64(len(line))

		var t T
		if jerr := json.Unmarshal(line, &t); jerr == nil {
			if keep == nil || keep(t) {
				items = append(items, t)
			}
		}
	}

	return Page[T]{Items: items, NextCursor: cur}, nil
}
