package repositories

import (
	"estate-chat/domain"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func Test_Describe(t *testing.T) {
	req := require.New(t)
	at := time.Date(2026, 1, 2, 10, 11, 12, 0, time.UTC)
	m := domain.Message{ID: uuid.New(), SenderID: "a", RecipientID: "b", Content: "hello", CreatedAt: at}

	record := Describe(string(messageKey(m.ID)), encodeMessage(m))
	req.Equal("MESSAGE", record.Type)
	req.Equal("10:11:12", record.Timestamp)
	req.Equal("a -> b (unread): hello", record.Detail)

	record = Describe("profile:a", encodeProfile(domain.Profile{ID: "a", Name: lo.ToPtr("Ana")}))
	req.Equal("PROFILE", record.Type)
	req.Equal("name=Ana avatar=-", record.Detail)

	record = Describe(string(userIndexKey("a", m)), nil)
	req.Equal("INDEX", record.Type)
	req.Equal("10:11:12", record.Timestamp)
	req.Equal("user a", record.Detail)

	record = Describe("other", []byte{1, 2})
	req.Equal("RAW", record.Type)
	req.Equal("Size: 2 bytes", record.Detail)
}
