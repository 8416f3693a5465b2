package auth

import (
	"fmt"

	"github.com/ashureev/interviewprep/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "interviewprep"

// signToken creates an HS256 token whose ID is the session record ID.
func (s *Service) signToken(session *domain.Session) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:        session.ID,
		Subject:   session.UserID,
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(session.CreatedAt),
		ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return token, nil
}

func (s *Service) parseToken(raw string) (*jwt.RegisteredClaims, error) {
	if raw == "" {
		return nil, ErrInvalidSession
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	if claims.ID == "" || claims.Subject == "" {
		return nil, ErrInvalidSession
	}
	return claims, nil
}
