package session

import (
	"encoding/json"
	"errors"
	"fmt"
)

// CurrentSchemaVersion is written by Encode. Version 1 records (no
// schemaVersion field) predate versioned updates and are upgraded on decode.
const CurrentSchemaVersion uint8 = 2

// ErrCorrupt is returned when a stored record cannot be decoded.
var ErrCorrupt = errors.New("session record corrupt")

// Encode serializes a session for storage.
func Encode(s *Session) ([]byte, error) {
	if s == nil {
		return nil, errors.New("nil session")
	}
	out := *s
	out.SchemaVersion = CurrentSchemaVersion
	return json.Marshal(&out)
}

// Decode parses a stored record and migrates older layouts in memory.
func Decode(data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if err := Migrate(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Migrate upgrades a record decoded by other means (for example as part of a
// larger document) to the current in-memory layout.
func Migrate(s *Session) error {
	switch {
	case s.SchemaVersion > CurrentSchemaVersion:
		return fmt.Errorf("%w: unsupported session schema version %d", ErrCorrupt, s.SchemaVersion)
	case s.SchemaVersion < CurrentSchemaVersion:
		s.SchemaVersion = CurrentSchemaVersion
	}
	if s.ID == "" {
		return fmt.Errorf("%w: missing id", ErrCorrupt)
	}
	s.normalize()
	return nil
}
