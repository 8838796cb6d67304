package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// ConversationSummary is the in-memory projection of a conversation:
// only the most recent message exchanged with one counterpart is kept.
type ConversationSummary struct {
	OtherID       string    `json:"other_id"`
	LastAt        time.Time `json:"last_at"`
	LastMessage   string    `json:"last_message"`
	LastMessageID uuid.UUID `json:"last_message_id"`
	Name          *string   `json:"name"`
	AvatarURL     *string   `json:"avatar_url"`
}

// Summarize reduces messages ordered newest first to one summary per counterpart.
// The first row met for a counterpart wins, there is no secondary sort key.
func Summarize(userID string, newestFirst []Message) []ConversationSummary {
	seen := make(map[string]struct{})
	var summaries []ConversationSummary
	for _, m := range newestFirst {
		other := m.Counterpart(userID)
		if _, ok := seen[other]; ok {
			continue
		}
		seen[other] = struct{}{}
		summaries = append(summaries, ConversationSummary{
			OtherID:       other,
			LastAt:        m.CreatedAt,
			LastMessage:   m.Content,
			LastMessageID: m.ID,
		})
	}
	return summaries
}

// Decorate patches display data on the summaries from the given profiles.
func Decorate(summaries []ConversationSummary, profiles []Profile) {
	byID := make(map[string]Profile, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
	}
	for i := range summaries {
		if p, ok := byID[summaries[i].OtherID]; ok {
			summaries[i].Name = p.Name
			summaries[i].AvatarURL = p.AvatarURL
		}
	}
}

// SortByLastAtDesc keeps the most recently active conversation first.
func SortByLastAtDesc(summaries []ConversationSummary) {
	slices.SortStableFunc(summaries, func(a, b ConversationSummary) int {
		return b.LastAt.Compare(a.LastAt)
	})
}
