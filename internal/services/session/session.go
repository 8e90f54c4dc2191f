package session

import (
	"fmt"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// Identity is the projection of the authenticated user this engine needs:
// who is acting, what to print next to their posts, which avatar to show.
type Identity struct {
	UserId    string
	Name      string
	AvatarURL string
}

type claims struct {
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
	gojwt.RegisteredClaims
}

// SessionService turns access tokens issued by the identity provider into
// identities. Token verification uses the provider's shared JWT secret.
type SessionService struct {
	secret []byte
}

func CreateSessionService(secret string) *SessionService {
	return &SessionService{secret: []byte(secret)}
}

// Parse validates the token and extracts the identity. An invalid, expired
// or empty token means "no session".
func (s *SessionService) Parse(token string) (Identity, error) {
	if token == "" {
		return Identity{}, fmt.Errorf("no session")
	}
	parsed, err := gojwt.ParseWithClaims(token, &claims{}, func(t *gojwt.Token) (any, error) {
		if _, ok := t.Method.(*gojwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("unable to parse session token: %v", err)
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return Identity{}, fmt.Errorf("invalid session token")
	}
	ident := Identity{UserId: c.Subject}
	if name, ok := c.UserMetadata["full_name"].(string); ok && name != "" {
		ident.Name = name
	} else if name, ok := c.UserMetadata["name"].(string); ok && name != "" {
		ident.Name = name
	} else {
		ident.Name = c.Email
	}
	if avatar, ok := c.UserMetadata["avatar_url"].(string); ok {
		ident.AvatarURL = avatar
	}
	return ident, nil
}
