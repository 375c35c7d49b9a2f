package auth

import (
	"context"
	"fmt"

	"github.com/form3tech-oss/jwt-go"
)

// JWTValidator verifies HS256 tokens signed with a shared secret, so the
// server needs no round trip to an auth service.
//
// The subject claim is the player id and "name" the display name. A token
// carrying a "game" claim is only accepted for that game.
type JWTValidator struct {
	secret []byte
}

// NewJWTValidator creates a validator for tokens signed with secret.
func NewJWTValidator(secret string) *JWTValidator {
	return &JWTValidator{secret: []byte(secret)}
}

func (v *JWTValidator) Validate(ctx context.Context, gameID, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	playerID := stringClaim(claims, "sub")
	if playerID == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	if game := stringClaim(claims, "game"); game != "" && game != gameID {
		return nil, fmt.Errorf("%w: token issued for game %q", ErrInvalidToken, game)
	}

	return &Identity{
		PlayerID:    playerID,
		DisplayName: stringClaim(claims, "name"),
	}, nil
}

func stringClaim(claims jwt.MapClaims, name string) string {
	s, _ := claims[name].(string)
	return s
}
