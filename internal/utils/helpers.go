package utils

import (
	"time"

	"github.com/google/uuid"
)

// Entity id prefixes. Persisted ids look like "wf_8f14e45f-...".
const (
	PrefixWorkflow  = "wf"
	PrefixFile      = "file"
	PrefixField     = "fld"
	PrefixTable     = "tbl"
	PrefixColumn    = "col"
	PrefixExecution = "exec"
)

// NewID mints a prefixed entity id.
func NewID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

// ParseYMD parses an ISO date (YYYY-MM-DD) at midnight UTC.
func ParseYMD(s string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}
