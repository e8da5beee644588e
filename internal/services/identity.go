package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"realtime-backend/internal/apperr"

	"github.com/golang-jwt/jwt/v5"
)

// JWTVerifier validates HS256 access tokens carrying a numeric user_id claim.
// When a directory is set the user must also still exist.
type JWTVerifier struct {
	secret []byte
	users  UserDirectory
}

func NewJWTVerifier(secret string, users UserDirectory) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), users: users}
}

func (v *JWTVerifier) Verify(ctx context.Context, credential string) (int, error) {
	if credential == "" {
		return 0, apperr.Unauthorized("missing token")
	}
	token, err := jwt.Parse(credential, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	})
	if err != nil {
		return 0, apperr.Wrap(apperr.CodeUnauthenticated, "invalid token", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return 0, apperr.ErrUnauthenticated
	}
	if typ, ok := claims["type"].(string); ok && typ != "access" {
		return 0, apperr.Unauthorized("invalid token type")
	}

	userID, err := userIDClaim(claims)
	if err != nil {
		return 0, apperr.Wrap(apperr.CodeUnauthenticated, "invalid token claims", err)
	}

	if v.users != nil {
		exists, err := v.users.Exists(ctx, userID)
		if err != nil {
			return 0, apperr.Internal(err)
		}
		if !exists {
			return 0, apperr.Unauthorized("user not found")
		}
	}
	return userID, nil
}

// userIDClaim reads user_id (a JSON number) or, failing that, a numeric sub.
func userIDClaim(claims jwt.MapClaims) (int, error) {
	if uid, ok := claims["user_id"].(float64); ok && uid > 0 {
		return int(uid), nil
	}
	if sub, ok := claims["sub"].(string); ok {
		id, err := strconv.Atoi(sub)
		if err == nil && id > 0 {
			return id, nil
		}
	}
	return 0, fmt.Errorf("no usable user id claim")
}
