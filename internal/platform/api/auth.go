package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Credentials is a single admin login the router checks bearer-token
// requests against. PasswordHash is a bcrypt hash, never a plaintext
// password, so the router's own memory never holds one.
type Credentials struct {
	Username     string
	PasswordHash string
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// loginHandler issues a short-lived HS256 bearer token for a matching
// username/password pair. Mounted outside the /esb route group: it must be
// reachable without already holding a bearer token.
func loginHandler(creds []Credentials, secret []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteBadRequest(w, "malformed login request")
			return
		}

		var matched *Credentials
		for i := range creds {
			if creds[i].Username == req.Username {
				matched = &creds[i]
				break
			}
		}
		if matched == nil || bcrypt.CompareHashAndPassword([]byte(matched.PasswordHash), []byte(req.Password)) != nil {
			WriteUnauthorized(w, "invalid credentials")
			return
		}

		expiresAt := time.Now().Add(time.Hour)
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": req.Username,
			"exp": expiresAt.Unix(),
			"iat": time.Now().Unix(),
		})
		signed, err := token.SignedString(secret)
		if err != nil {
			WriteInternalError(w, "issuing token")
			return
		}
		WriteJSON(w, http.StatusOK, loginResponse{Token: signed, ExpiresAt: expiresAt})
	}
}
