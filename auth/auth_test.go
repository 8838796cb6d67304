package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHashAndCompare(t *testing.T) {
	req := require.New(t)
	password := "MonMotDePasseTr0pSûr!"

	hash, err := HashPassword(password)
	req.NoError(err)
	req.True(strings.HasPrefix(hash, "$argon2id$"))

	match, err := ComparePassword(password, hash)
	req.NoError(err)
	req.True(match)

	// Wrong password
	match, err = ComparePassword("WrongPassword", hash)
	req.NoError(err)
	req.False(match)

	_, err = ComparePassword(password, "$bcrypt$nope")
	req.Error(err)
}

func TestRegistrationValidation(t *testing.T) {
	req := require.New(t)
	tests := []struct {
		name    string
		req     RegisterRequest
		wantErr bool
	}{
		{"Valid request", RegisterRequest{"test@example.com", "ComplexPass123!", "Ana"}, false},
		{"Valid without name", RegisterRequest{"test@example.com", "ComplexPass123!", ""}, false},
		{"Invalid email", RegisterRequest{"notanemail", "ComplexPass123!", ""}, true},
		{"Password too short", RegisterRequest{"test@example.com", "Short1!", ""}, true},
		{"Missing digit", RegisterRequest{"test@example.com", "NoDigitPass!", ""}, true},
		{"Missing special char", RegisterRequest{"test@example.com", "NoSpecialChar123", ""}, true},
		{"Missing uppercase", RegisterRequest{"test@example.com", "nouppercase123!", ""}, true},
		{"Password too long (edge case)", RegisterRequest{"test@example.com", strings.Repeat("a", 73), ""}, true},
		{"Name too long", RegisterRequest{"test@example.com", "ComplexPass123!", strings.Repeat("n", 81)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRegister(tt.req)
			if tt.wantErr {
				req.Error(err)
			} else {
				req.NoError(err)
			}
		})
	}
}

func TestTokens_Generate_And_Validate(t *testing.T) {
	req := require.New(t)
	tokens := NewTokens("a_test_secret_long_enough_for_hs256", time.Hour)

	token, err := tokens.Generate("user-1", []string{"user"})
	req.NoError(err)

	claims, err := tokens.Validate(token)
	req.NoError(err)
	req.Equal("user-1", claims.UserID)
	req.Equal([]string{"user"}, claims.Roles)
}

func TestTokens_Rejects_Other_Secret_And_Expired(t *testing.T) {
	req := require.New(t)
	tokens := NewTokens("secret-one-secret-one-secret-one", time.Hour)
	token, err := tokens.Generate("user-1", nil)
	req.NoError(err)

	_, err = NewTokens("secret-two-secret-two-secret-two", time.Hour).Validate(token)
	req.Error(err)

	expired := NewTokens("secret-one-secret-one-secret-one", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = expired.Validate(token)
	req.Error(err)

	_, err = tokens.Validate("not.a.token")
	req.Error(err)
}

// BenchmarkHashPassword measures the CPU and memory cost of a registration
func BenchmarkHashPassword(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = HashPassword("A-very-long-and-complex-password-for-bench-123!")
	}
}
