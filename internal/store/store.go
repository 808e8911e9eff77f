// Package store implements the application repositories: users, quizzes,
// chat, study lists, progress, notifications. Every repository talks to the
// database exclusively through the backend-neutral Handle contract, so the
// same call sites run unmodified against the embedded or the client-server
// store.
package store

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/qustavo/dotsql"
)

//go:embed queries/*.sql
var queriesFS embed.FS

// Sentinel errors for repository operations.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidCredentials indicates a failed username/password check.
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// Store provides access to named, backend-neutral SQL queries loaded from
// embedded .sql files. Queries use the neutral dialect (`?` placeholders,
// INSERT OR IGNORE / OR REPLACE); the connection handle translates them for
// whichever backend is live.
type Store struct {
	dot *dotsql.DotSql
}

// New loads all embedded .sql files and returns a Store.
func New() (*Store, error) {
	var combinedSQL string

	err := fs.WalkDir(queriesFS, "queries", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".sql" {
			return nil
		}
		content, err := queriesFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		combinedSQL += string(content) + "\n"
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load query files: %w", err)
	}

	dot, err := dotsql.LoadFromString(combinedSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse queries: %w", err)
	}
	return &Store{dot: dot}, nil
}

// raw returns the neutral SQL text of a named query.
func (s *Store) raw(name string) (string, error) {
	query, err := s.dot.Raw(name)
	if err != nil {
		return "", fmt.Errorf("query not found: %s", name)
	}
	return query, nil
}

// boolToInt maps Go booleans onto the INTEGER flag columns both backends
// share. Passing a bare bool would work on one driver and not the other.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
