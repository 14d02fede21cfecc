// Package sessionstore defines the interface the recovery engine is
// driven through for session persistence — spec.md marks this an
// external collaborator ("embedded relational store keyed by session
// id") — plus a JSON-file reference implementation standing in for
// that store's "serialized scan_results as a single JSON blob column",
// minus the SQL engine itself.
package sessionstore

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/shubham/ghostrecover/internal/ghosterr"
	"github.com/shubham/ghostrecover/internal/model"
)

// Store is the persistence contract the orchestrator and CLI are
// driven through.
type Store interface {
	Save(session model.RecoverySession) error
	Load(id uuid.UUID) (model.RecoverySession, error)
	List() ([]model.RecoverySession, error)
}

// JSONFileStore persists one <id>.json blob per session under dir.
type JSONFileStore struct {
	dir string
}

// NewJSONFileStore creates dir if needed and returns a store rooted
// there.
func NewJSONFileStore(dir string) (*JSONFileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, ghosterr.Wrap(ghosterr.KindIO, "create session store dir", err)
	}
	return &JSONFileStore{dir: dir}, nil
}

func (s *JSONFileStore) path(id uuid.UUID) string {
	return filepath.Join(s.dir, id.String()+".json")
}

// Save writes session as a JSON blob, overwriting any prior save for
// the same id.
func (s *JSONFileStore) Save(session model.RecoverySession) error {
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return ghosterr.Wrap(ghosterr.KindIO, "marshal session", err)
	}
	if err := os.WriteFile(s.path(session.ID), data, 0o644); err != nil {
		return ghosterr.Wrap(ghosterr.KindIO, "write session blob", err)
	}
	return nil
}

// Load reads back the session with the given id.
func (s *JSONFileStore) Load(id uuid.UUID) (model.RecoverySession, error) {
	var session model.RecoverySession
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		return session, ghosterr.Wrap(ghosterr.KindIO, "read session blob", err)
	}
	if err := json.Unmarshal(data, &session); err != nil {
		return session, ghosterr.Wrap(ghosterr.KindParse, "unmarshal session blob", err)
	}
	return session, nil
}

// List returns every session blob found under dir.
func (s *JSONFileStore) List() ([]model.RecoverySession, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, ghosterr.Wrap(ghosterr.KindIO, "list session store dir", err)
	}
	var sessions []model.RecoverySession
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			continue
		}
		var session model.RecoverySession
		if err := json.Unmarshal(data, &session); err != nil {
			continue
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}
