package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ScheduledEmailIDs maps job keys to provider message ids. It is the legacy
// inline encoding some session records still carry; the job store is the
// system of record.
type ScheduledEmailIDs map[JobKey]string

// StringifyScheduledEmailIDs encodes ids as a JSON object keyed by
// "{type}_{email}". A nil map encodes as "{}".
func StringifyScheduledEmailIDs(ids ScheduledEmailIDs) (string, error) {
	if ids == nil {
		ids = ScheduledEmailIDs{}
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("encode scheduled email ids: %w", err)
	}
	return string(b), nil
}

// ParseScheduledEmailIDs decodes the inline JSON form, stamping every key with
// sessionID. Empty input and "null" decode to an empty map.
func ParseScheduledEmailIDs(sessionID, raw string) (ScheduledEmailIDs, error) {
	ids := ScheduledEmailIDs{}
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return ids, nil
	}

	var decoded ScheduledEmailIDs
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, fmt.Errorf("decode scheduled email ids: %w", err)
	}
	for k, v := range decoded {
		k.SessionID = sessionID
		ids[k] = v
	}
	return ids, nil
}
