package app

import (
	"estate-chat/internal"
	"estate-chat/repositories"
)

// InspectMapper decodes the stored messages, profiles and users for the badger inspector.
func InspectMapper(key string, val []byte) internal.InspectRow {
	r := repositories.Describe(key, val)
	return internal.InspectRow{Key: r.Key, Type: r.Type, Timestamp: r.Timestamp, EntityID: r.EntityID, Detail: r.Detail}
}
