package turnrest

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"strings"
	"testing"
	"time"
)

func fixedIssuer(t *testing.T) *Issuer {
	t.Helper()
	iss, err := NewIssuer(Config{
		Secret:    "shared-secret",
		TTL:       time.Hour,
		URLs:      []string{"turn:turn.example:3478?transport=udp"},
		Now:       func() time.Time { return time.Unix(1_700_000_000, 0) },
		SessionID: func() (string, error) { return "session123", nil },
	})
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	return iss
}

func TestIssueIsDeterministicWithFixedClock(t *testing.T) {
	t.Parallel()

	creds, err := fixedIssuer(t).Issue()
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	wantUser := "1700003600:p2pchat:session123"
	if creds.Username != wantUser {
		t.Fatalf("expected username %q, got %q", wantUser, creds.Username)
	}
	if creds.ExpiresAt.Unix() != 1_700_003_600 {
		t.Fatalf("expected expiry 1700003600, got %d", creds.ExpiresAt.Unix())
	}

	mac := hmac.New(sha1.New, []byte("shared-secret"))
	mac.Write([]byte(wantUser))
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	if creds.Credential != want {
		t.Fatalf("expected credential %q, got %q", want, creds.Credential)
	}
	if len(creds.URLs) != 1 {
		t.Fatalf("expected configured URLs, got %v", creds.URLs)
	}
}

func TestIssueForRejectsBadSessionIDs(t *testing.T) {
	t.Parallel()

	iss := fixedIssuer(t)
	for _, sid := range []string{"", "a:b"} {
		if _, err := iss.IssueFor(sid); err == nil {
			t.Fatalf("expected error for session id %q", sid)
		}
	}
}

func TestNewIssuerValidation(t *testing.T) {
	t.Parallel()

	urls := []string{"turn:turn.example:3478"}
	tests := []struct {
		name string
		cfg  Config
	}{
		{"no secret", Config{TTL: time.Hour, URLs: urls}},
		{"short ttl", Config{Secret: "s", TTL: time.Millisecond, URLs: urls}},
		{"no urls", Config{Secret: "s", TTL: time.Hour}},
		{"colon prefix", Config{Secret: "s", TTL: time.Hour, URLs: urls, Prefix: "a:b"}},
	}
	for _, tt := range tests {
		if _, err := NewIssuer(tt.cfg); err == nil {
			t.Fatalf("%s: expected error", tt.name)
		}
	}
}

func TestRandomSessionIDs(t *testing.T) {
	t.Parallel()

	iss, err := NewIssuer(Config{Secret: "s", TTL: time.Minute, URLs: []string{"turn:x"}})
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	a, _ := iss.Issue()
	b, _ := iss.Issue()
	if a.Username == b.Username {
		t.Fatalf("expected distinct usernames, got %q twice", a.Username)
	}
	if parts := strings.Split(a.Username, ":"); len(parts) != 3 || len(parts[2]) != 32 {
		t.Fatalf("unexpected username shape %q", a.Username)
	}
}
