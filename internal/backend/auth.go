package backend

import (
	"context"
	"fmt"
	"net/http"
)

// TokenResponse is the backend auth endpoint's grant payload.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
	ExpiresIn    int64  `json:"expires_in"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

type passwordGrantRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signUpRequest struct {
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Data     map[string]any `json:"data,omitempty"`
}

// PasswordGrant exchanges email/password credentials for a token pair.
func (c *Client) PasswordGrant(ctx context.Context, email, password string) (*TokenResponse, error) {
	endpoint := fmt.Sprintf("%s/auth/v1/token?grant_type=password", c.baseURL)
	var out TokenResponse
	err := c.do(ctx, http.MethodPost, endpoint, "", passwordGrantRequest{Email: email, Password: password}, &out, "")
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SignUp registers a new account. The metadata map lands in the user's
// profile row via backend triggers.
func (c *Client) SignUp(ctx context.Context, email, password string, meta map[string]any) (*TokenResponse, error) {
	endpoint := fmt.Sprintf("%s/auth/v1/signup", c.baseURL)
	var out TokenResponse
	err := c.do(ctx, http.MethodPost, endpoint, "", signUpRequest{Email: email, Password: password, Data: meta}, &out, "")
	if err != nil {
		return nil, err
	}
	return &out, nil
}
