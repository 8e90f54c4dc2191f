package session

import (
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	gojwt "github.com/golang-jwt/jwt/v5"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters-long"

func issueToken(t *testing.T, secret string, claims gojwt.MapClaims) string {
	token := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("unable to sign test token: %v", err)
	}
	return signed
}

func TestParseExtractsIdentity(t *testing.T) {
	service := CreateSessionService(testSecret)
	token := issueToken(t, testSecret, gojwt.MapClaims{
		"sub":   "u1",
		"email": "mai@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
		"user_metadata": map[string]any{
			"full_name":  "Mai Trần",
			"avatar_url": "https://cdn.example.com/mai.png",
		},
	})

	ident, err := service.Parse(token)
	assert.Equal(t, nil, err)
	assert.Equal(t, "u1", ident.UserId)
	assert.Equal(t, "Mai Trần", ident.Name)
	assert.Equal(t, "https://cdn.example.com/mai.png", ident.AvatarURL)
}

func TestParseNameFallsBackToEmail(t *testing.T) {
	service := CreateSessionService(testSecret)
	token := issueToken(t, testSecret, gojwt.MapClaims{
		"sub":   "u1",
		"email": "mai@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	ident, err := service.Parse(token)
	assert.Equal(t, nil, err)
	assert.Equal(t, "mai@example.com", ident.Name)
}

func TestParseNamePrefersFullName(t *testing.T) {
	service := CreateSessionService(testSecret)
	token := issueToken(t, testSecret, gojwt.MapClaims{
		"sub": "u1",
		"exp": time.Now().Add(time.Hour).Unix(),
		"user_metadata": map[string]any{
			"name": "mai",
		},
	})

	ident, err := service.Parse(token)
	assert.Equal(t, nil, err)
	assert.Equal(t, "mai", ident.Name)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	service := CreateSessionService(testSecret)
	token := issueToken(t, "another-secret-that-is-definitely-not-the-right-one", gojwt.MapClaims{
		"sub": "u1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err := service.Parse(token)
	assert.NotEqual(t, nil, err)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	service := CreateSessionService(testSecret)
	token := issueToken(t, testSecret, gojwt.MapClaims{
		"sub": "u1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	_, err := service.Parse(token)
	assert.NotEqual(t, nil, err)
}

func TestParseRejectsEmptyToken(t *testing.T) {
	service := CreateSessionService(testSecret)
	_, err := service.Parse("")
	assert.NotEqual(t, nil, err)
}
