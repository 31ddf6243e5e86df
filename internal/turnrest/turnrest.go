// Package turnrest issues coturn-compatible TURN REST credentials
// (draft-uberti-behave-turn-rest):
//
//	username   = <unix expiry>:<prefix>:<session id>
//	credential = base64(hmac_sha1(shared secret, username))
package turnrest

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Secret string
	TTL    time.Duration
	Prefix string
	URLs   []string

	// Now and SessionID are replaced in tests.
	Now       func() time.Time
	SessionID func() (string, error)
}

type Issuer struct {
	secret    []byte
	ttl       time.Duration
	prefix    string
	urls      []string
	now       func() time.Time
	sessionID func() (string, error)
}

// Credentials is the payload served to clients. Its JSON form is what the
// chat client's credential fetcher expects.
type Credentials struct {
	URLs       []string  `json:"urls"`
	Username   string    `json:"username"`
	Credential string    `json:"credential"`
	ExpiresAt  time.Time `json:"expires_at"`
}

func NewIssuer(cfg Config) (*Issuer, error) {
	switch {
	case cfg.Secret == "":
		return nil, errors.New("turnrest: shared secret is required")
	case cfg.TTL < time.Second:
		return nil, errors.New("turnrest: TTL must be at least one second")
	case len(cfg.URLs) == 0:
		return nil, errors.New("turnrest: at least one TURN URL is required")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "p2pchat"
	}
	if strings.Contains(cfg.Prefix, ":") {
		return nil, errors.New("turnrest: prefix must not contain ':'")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.SessionID == nil {
		cfg.SessionID = randomSessionID
	}

	return &Issuer{
		secret:    []byte(cfg.Secret),
		ttl:       cfg.TTL,
		prefix:    cfg.Prefix,
		urls:      append([]string(nil), cfg.URLs...),
		now:       cfg.Now,
		sessionID: cfg.SessionID,
	}, nil
}

// Issue mints credentials for a fresh random session.
func (i *Issuer) Issue() (Credentials, error) {
	sid, err := i.sessionID()
	if err != nil {
		return Credentials{}, fmt.Errorf("turnrest: session id: %w", err)
	}
	return i.IssueFor(sid)
}

func (i *Issuer) IssueFor(sessionID string) (Credentials, error) {
	if sessionID == "" || strings.Contains(sessionID, ":") {
		return Credentials{}, fmt.Errorf("turnrest: invalid session id %q", sessionID)
	}

	expires := i.now().UTC().Add(i.ttl).Truncate(time.Second)
	username := fmt.Sprintf("%d:%s:%s", expires.Unix(), i.prefix, sessionID)

	return Credentials{
		URLs:       append([]string(nil), i.urls...),
		Username:   username,
		Credential: Sign(i.secret, username),
		ExpiresAt:  expires,
	}, nil
}

// Sign returns base64(HMAC-SHA1(secret, username)), the coturn credential.
func Sign(secret []byte, username string) string {
	mac := hmac.New(sha1.New, secret)
	mac.Write([]byte(username))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func randomSessionID() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}
