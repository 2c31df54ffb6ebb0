package ids

import (
	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
)

// New returns a time-sortable identifier for persisted records.
func New() string {
	return ksuid.New().String()
}

// NewSecret returns a random v4 UUID suitable as a bearer secret.
func NewSecret() string {
	return uuid.NewString()
}

// IsRecordID reports whether s is a well-formed identifier produced by New.
func IsRecordID(s string) bool {
	_, err := ksuid.Parse(s)
	return err == nil
}
