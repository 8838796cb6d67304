package repositories

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Record is a human readable view of one badger entry.
type Record struct {
	Key       string
	Type      string
	Timestamp string
	EntityID  string
	Detail    string
}

// Describe decodes a raw badger entry according to its key prefix.
func Describe(key string, val []byte) Record {
	record := Record{
		Key:       key,
		Type:      "RAW",
		Timestamp: "--:--:--",
		EntityID:  "--------",
		Detail:    fmt.Sprintf("Size: %d bytes", len(val)),
	}
	switch {
	case strings.HasPrefix(key, "msg:"):
		m, err := decodeMessage(val)
		if err != nil {
			record.Detail = "Error: decode failed"
			return record
		}
		record.Type = "MESSAGE"
		record.Timestamp = m.CreatedAt.Format(time.TimeOnly)
		record.EntityID = shortID(m.ID.String())
		status := "unread"
		if m.ReadAt != nil {
			status = "read " + m.ReadAt.Format(time.TimeOnly)
		}
		record.Detail = fmt.Sprintf("%s -> %s (%s): %s", m.SenderID, m.RecipientID, status, m.Content)
	case strings.HasPrefix(key, "profile:"):
		p, err := decodeProfile(val)
		if err != nil {
			record.Detail = "Error: decode failed"
			return record
		}
		record.Type = "PROFILE"
		record.EntityID = shortID(p.ID)
		record.Detail = fmt.Sprintf("name=%s avatar=%s", deref(p.Name), deref(p.AvatarURL))
	case strings.HasPrefix(key, "user:"):
		u, err := decodeUser(val)
		if err != nil {
			record.Detail = "Error: decode failed"
			return record
		}
		record.Type = "USER"
		record.Timestamp = u.CreatedAt.Format(time.TimeOnly)
		record.EntityID = shortID(u.ID)
		record.Detail = fmt.Sprintf("%s roles=%s", u.Email, strings.Join(u.Roles, ","))
	case strings.HasPrefix(key, "idx:user:"):
		record.Type = "INDEX"
		parts := strings.Split(key, ":")
		if len(parts) == 5 {
			var nanos int64
			if _, err := fmt.Sscanf(parts[3], "%d", &nanos); err == nil {
				record.Timestamp = time.Unix(0, nanos).UTC().Format(time.TimeOnly)
			}
			record.EntityID = shortID(parts[4])
			user, err := hex.DecodeString(parts[2])
			if err != nil {
				user = []byte(parts[2])
			}
			record.Detail = "user " + string(user)
		}
	}
	return record
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
