package auth

// RegisterParams is the payload for account creation.
type RegisterParams struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginParams is the payload for credential login.
type LoginParams struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshParams carries the refresh token for rotation and logout.
type RefreshParams struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenPair is an access token plus the refresh token that renews it.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
