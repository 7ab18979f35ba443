package session

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Tier identifies which storage area holds an envelope.
type Tier string

const (
	TierDurable   Tier = "durable"
	TierEphemeral Tier = "ephemeral"
)

// Envelope is the persisted session blob: the backend-issued token pair plus
// the identity it belongs to.
type Envelope struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresAt    int64  `json:"expires_at"`
	UserID       string `json:"user_id"`
	Email        string `json:"email"`
	Tier         Tier   `json:"-"`
}

// Expired reports whether the envelope's expiry is at or before now. An
// envelope with no recoverable expiry is treated as expired.
func (e *Envelope) Expired(now time.Time) bool {
	if e.ExpiresAt == 0 {
		return true
	}
	return e.ExpiresAt <= now.Unix()
}

// rawEnvelope covers both the flat blob written by this service and the
// nested shape older clients persisted.
type rawEnvelope struct {
	Envelope
	User *struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
	CurrentSession *rawEnvelope `json:"currentSession"`
	Session        *rawEnvelope `json:"session"`
}

// Parse decodes a stored blob into an Envelope. Nested envelopes are
// unwrapped; identity and expiry missing from the blob are recovered from the
// access token's claims, decoded without verification since the backend is the
// signature authority. A blob with no usable access token yields nil.
func Parse(blob []byte) *Envelope {
	if len(blob) == 0 {
		return nil
	}
	var raw rawEnvelope
	if err := json.Unmarshal(blob, &raw); err != nil {
		return nil
	}
	if raw.CurrentSession != nil {
		raw = *raw.CurrentSession
	} else if raw.Session != nil {
		raw = *raw.Session
	}
	env := raw.Envelope
	if raw.User != nil {
		if env.UserID == "" {
			env.UserID = raw.User.ID
		}
		if env.Email == "" {
			env.Email = raw.User.Email
		}
	}
	if strings.TrimSpace(env.AccessToken) == "" {
		return nil
	}
	if env.ExpiresAt == 0 || env.UserID == "" {
		fillFromToken(&env)
	}
	return &env
}

func fillFromToken(env *Envelope) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(env.AccessToken, claims); err != nil {
		return
	}
	if env.ExpiresAt == 0 {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			env.ExpiresAt = exp.Unix()
		}
	}
	if env.UserID == "" {
		if sub, err := claims.GetSubject(); err == nil {
			env.UserID = sub
		}
	}
	if env.Email == "" {
		if v, ok := claims["email"].(string); ok {
			env.Email = v
		}
	}
}
