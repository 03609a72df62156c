package server

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// mintAccessToken produces a new bearer token value. With a signing secret
// configured the token is an HS256-signed JWT carrying standard claims;
// otherwise it is an opaque random string. Validity is always decided by the
// token store, not by the claims.
func (s *Server) mintAccessToken(subject, clientID, scope string) (string, error) {
	if s.Config.SigningSecret == "" {
		return generateRandomToken(), nil
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss":       s.Config.Issuer,
		"sub":       subject,
		"client_id": clientID,
		"iat":       now.Unix(),
		"exp":       now.Add(time.Duration(s.Config.AccessTokenTTL) * time.Second).Unix(),
		"jti":       generateRandomToken(),
	}
	if scope != "" {
		claims["scope"] = scope
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.Config.SigningSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// verifySignedToken checks a JWT's signature and registered claims against
// the signing secret. Only HMAC-signed tokens are accepted.
func (s *Server) verifySignedToken(tokenValue string) error {
	_, err := jwt.Parse(tokenValue, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.Config.SigningSecret), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return err
	}

	return nil
}
