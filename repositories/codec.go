package repositories

import (
	"fmt"
	"time"

	"estate-chat/domain"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"
)

// Stored values are protobuf messages encoded field by field:
//
//	message Message { string id = 1; string sender_id = 2; string recipient_id = 3;
//	                  string content = 4; int64 created_at = 5; int64 read_at = 6; }
//	message Profile { string id = 1; string name = 2; string avatar_url = 3; }
//	message User    { string id = 1; string email = 2; string password_hash = 3;
//	                  repeated string roles = 4; int64 created_at = 5; }
//
// Timestamps are Unix nanoseconds, an absent read_at means unread.

func encodeMessage(m domain.Message) []byte {
	var b []byte
	b = appendString(b, 1, m.ID.String())
	b = appendString(b, 2, m.SenderID)
	b = appendString(b, 3, m.RecipientID)
	b = appendString(b, 4, m.Content)
	b = appendInt64(b, 5, m.CreatedAt.UnixNano())
	if m.ReadAt != nil {
		b = appendInt64(b, 6, m.ReadAt.UnixNano())
	}
	return b
}

func decodeMessage(b []byte) (domain.Message, error) {
	var m domain.Message
	err := consumeFields(b, func(num protowire.Number, s string, v uint64) error {
		switch num {
		case 1:
			id, err := uuid.Parse(s)
			if err != nil {
				return err
			}
			m.ID = id
		case 2:
			m.SenderID = s
		case 3:
			m.RecipientID = s
		case 4:
			m.Content = s
		case 5:
			m.CreatedAt = time.Unix(0, int64(v)).UTC()
		case 6:
			readAt := time.Unix(0, int64(v)).UTC()
			m.ReadAt = &readAt
		}
		return nil
	})
	return m, err
}

func encodeProfile(p domain.Profile) []byte {
	var b []byte
	b = appendString(b, 1, p.ID)
	if p.Name != nil {
		b = appendString(b, 2, *p.Name)
	}
	if p.AvatarURL != nil {
		b = appendString(b, 3, *p.AvatarURL)
	}
	return b
}

func decodeProfile(b []byte) (domain.Profile, error) {
	var p domain.Profile
	err := consumeFields(b, func(num protowire.Number, s string, _ uint64) error {
		switch num {
		case 1:
			p.ID = s
		case 2:
			p.Name = &s
		case 3:
			p.AvatarURL = &s
		}
		return nil
	})
	return p, err
}

func encodeUser(u User) []byte {
	var b []byte
	b = appendString(b, 1, u.ID)
	b = appendString(b, 2, u.Email)
	b = appendString(b, 3, u.PasswordHash)
	for _, role := range u.Roles {
		b = appendString(b, 4, role)
	}
	b = appendInt64(b, 5, u.CreatedAt.UnixNano())
	return b
}

func decodeUser(b []byte) (User, error) {
	var u User
	err := consumeFields(b, func(num protowire.Number, s string, v uint64) error {
		switch num {
		case 1:
			u.ID = s
		case 2:
			u.Email = s
		case 3:
			u.PasswordHash = s
		case 4:
			u.Roles = append(u.Roles, s)
		case 5:
			u.CreatedAt = time.Unix(0, int64(v)).UTC()
		}
		return nil
	})
	return u, err
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendInt64(b []byte, num protowire.Number, v int64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

// consumeFields walks the encoded fields, unknown field types are skipped.
func consumeFields(b []byte, visit func(num protowire.Number, s string, v uint64) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("decode tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch typ {
		case protowire.BytesType:
			s, m := protowire.ConsumeString(b)
			if m < 0 {
				return fmt.Errorf("decode field %d: %w", num, protowire.ParseError(m))
			}
			if err := visit(num, s, 0); err != nil {
				return err
			}
			b = b[m:]
		case protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return fmt.Errorf("decode field %d: %w", num, protowire.ParseError(m))
			}
			if err := visit(num, "", v); err != nil {
				return err
			}
			b = b[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return fmt.Errorf("skip field %d: %w", num, protowire.ParseError(m))
			}
			b = b[m:]
		}
	}
	return nil
}
