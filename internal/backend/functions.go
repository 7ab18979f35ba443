package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Functions invokes the backend's serverless functions: one POST with a JSON
// body, one JSON response carrying either the payload or an error message.
type Functions struct {
	baseURL string
	anonKey string
	client  *http.Client
}

func NewFunctions(opts Options) (*Functions, error) {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		return nil, errors.New("functions base url is required")
	}
	if strings.TrimSpace(opts.AnonKey) == "" {
		return nil, errors.New("functions anon key is required")
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Functions{baseURL: baseURL, anonKey: strings.TrimSpace(opts.AnonKey), client: client}, nil
}

// Invoke posts payload to the named function and decodes the response into
// dest. Function-level failures ({"error": "..."}) come back as *APIError so
// callers can surface the message.
func (f *Functions) Invoke(ctx context.Context, token, name string, payload, dest any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return fmt.Errorf("functions: encode payload: %w", err)
	}
	endpoint := fmt.Sprintf("%s/functions/v1/%s", f.baseURL, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return fmt.Errorf("functions: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", f.anonKey)
	if token == "" {
		token = f.anonKey
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("functions: invoke %s: %w", name, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}
	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("functions: decode %s response: %w", name, err)
	}
	return nil
}

type otpSendRequest struct {
	Phone string `json:"phone"`
}

type otpVerifyRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

type otpVerifyResponse struct {
	Verified          bool   `json:"verified"`
	VerificationToken string `json:"verification_token"`
}

type resetPasswordRequest struct {
	Email string `json:"email"`
}

// OTPSend asks the backend to send a one-time code to the phone number.
func (f *Functions) OTPSend(ctx context.Context, phone string) error {
	return f.Invoke(ctx, "", "otp-send", otpSendRequest{Phone: phone}, nil)
}

// OTPVerify checks a one-time code and returns the verification token the
// registration step must present.
func (f *Functions) OTPVerify(ctx context.Context, phone, code string) (string, error) {
	var out otpVerifyResponse
	if err := f.Invoke(ctx, "", "otp-verify", otpVerifyRequest{Phone: phone, Code: code}, &out); err != nil {
		return "", err
	}
	if !out.Verified || out.VerificationToken == "" {
		return "", errors.New("otp verification rejected")
	}
	return out.VerificationToken, nil
}

// ResetPassword triggers the password-reset mail flow.
func (f *Functions) ResetPassword(ctx context.Context, email string) error {
	return f.Invoke(ctx, "", "reset-password", resetPasswordRequest{Email: email}, nil)
}
