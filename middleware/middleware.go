package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/julienschmidt/httprouter"

	"pantree/utils"
)

type contextKey string

const UserIDKey contextKey = "userId"

// JWT claims
type Claims struct {
	Username string   `json:"username"`
	UserID   string   `json:"userId"`
	Role     []string `json:"role"`
	jwt.RegisteredClaims
}

// Auth guards mutating routes with an HS256 bearer token. With no secret
// configured every request passes.
type Auth struct {
	Secret []byte
}

func (a *Auth) keyFunc(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
	}
	return a.Secret, nil
}

// Authenticate rejects requests without a valid token.
func (a *Auth) Authenticate(next httprouter.Handle) httprouter.Handle {
	if a == nil || len(a.Secret) == 0 {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		claims, err := a.ValidateJWT(r.Header.Get("Authorization"))
		if err != nil {
			utils.RespondWithError(w, http.StatusUnauthorized, err.Error())
			return
		}

		// Store UserID in context
		ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
		next(w, r.WithContext(ctx), ps)
	}
}

// ValidateJWT parses an Authorization header value of the form "Bearer <token>".
func (a *Auth) ValidateJWT(header string) (*Claims, error) {
	if header == "" {
		return nil, fmt.Errorf("missing token")
	}
	if len(header) < 8 || header[:7] != "Bearer " {
		return nil, fmt.Errorf("invalid token format")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(header[7:], claims, a.keyFunc)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// UserID returns the authenticated user, if any.
func UserID(r *http.Request) string {
	id, _ := r.Context().Value(UserIDKey).(string)
	return id
}
