package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var sessionIDShape = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// DirSource reads session records from a host-managed directory holding one
// "<id>.json" file per session. It is the file-level adapter for hosts that
// expose session metadata on disk rather than over an API.
type DirSource struct {
	Dir string
}

func (s DirSource) Lookup(_ context.Context, id string) (Session, error) {
	trimmed := strings.TrimSpace(id)
	if !sessionIDShape.MatchString(trimmed) {
		return Session{}, fmt.Errorf("invalid session id %q", id)
	}
	path := filepath.Join(s.Dir, trimmed+".json")
	content, err := os.ReadFile(path) // #nosec G304 -- id shape is validated and joined under the configured session dir.
	if err != nil {
		return Session{}, fmt.Errorf("read session record %s: %w", path, err)
	}
	var record Session
	if err := json.Unmarshal(content, &record); err != nil {
		return Session{}, fmt.Errorf("decode session record %s: %w", path, err)
	}
	if strings.TrimSpace(record.ID) == "" {
		record.ID = trimmed
	}
	return record, nil
}
