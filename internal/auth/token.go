package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pixil98/go-vtt/internal/game"
)

// Claims defines the data carried by a signed join token. A token admits one
// player into one room at a fixed role and starting location.
type Claims struct {
	Player   string    `json:"player"`
	Role     game.Role `json:"role"`
	Room     string    `json:"room"`
	Location string    `json:"location"`
	jwt.RegisteredClaims
}

// Tokens signs and validates join tokens with a shared HMAC key.
type Tokens struct {
	key []byte
	ttl time.Duration
}

func NewTokens(key []byte, ttl time.Duration) *Tokens {
	return &Tokens{key: key, ttl: ttl}
}

// Generate creates a signed join token for a player.
func (t *Tokens) Generate(player string, role game.Role, room, location string) (string, error) {
	now := time.Now()

	claims := &Claims{
		Player:   player,
		Role:     role,
		Room:     room,
		Location: location,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "go-vtt",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.key)
}

// Validate parses and validates the signature and expiration of a join
// token. This is the authentication boundary for inbound connections.
func (t *Tokens) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return t.key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	return claims, nil
}
