package appMiddleware

import (
	"os"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const UserIDKey contextKey = "userID"

// Claims are the JWT claims issued on login.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

// The secret comes from the environment; the fallback only exists so local
// dev works without a .env file.
var JwtSecretKey = secretFromEnv("JWT_SECRET_KEY", "dev-secret-key")

func secretFromEnv(name, fallback string) []byte {
	if v := os.Getenv(name); v != "" {
		return []byte(v)
	}
	return []byte(fallback)
}
