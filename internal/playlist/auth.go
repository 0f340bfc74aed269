package playlist

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type TokenClaims struct {
	UserID string `json:"uid"`
	Name   string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for uid.
func IssueToken(secret []byte, uid, name string) (string, error) {
	claims := TokenClaims{UserID: uid, Name: name}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// authMiddleware resolves the caller into X-User-Id. With an empty secret
// auth is off and any X-User-Id sent by the caller is trusted. Otherwise a
// valid bearer token is required.
func authMiddleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(secret) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing bearer token", nil)
				return
			}

			claims := &TokenClaims{}
			token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
				return secret, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !token.Valid || claims.UserID == "" {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "invalid token", nil)
				return
			}

			r.Header.Set("X-User-Id", claims.UserID)
			if claims.Name != "" {
				r.Header.Set("X-User-Name", claims.Name)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requester names the caller for added_by: token name, then user id, then
// the body value, then Anonymous.
func requester(r *http.Request, fromBody string) string {
	for _, v := range []string{r.Header.Get("X-User-Name"), r.Header.Get("X-User-Id"), strings.TrimSpace(fromBody)} {
		if v != "" {
			return v
		}
	}
	return "Anonymous"
}
