// Package iceauth builds the ICE server list for new connections: the
// configured STUN servers plus short-lived TURN credentials fetched from a
// credential endpoint when one is reachable.
package iceauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/abdulmanan69/p2pchat/internal/dns"
	"github.com/abdulmanan69/p2pchat/internal/errs"
	"github.com/abdulmanan69/p2pchat/internal/version"
	pion "github.com/pion/webrtc/v4"
)

var errIncomplete = errors.New("response is missing urls, username or credential")

// Response is the credential endpoint payload. urls may be a single string
// or a list.
type Response struct {
	URLs       stringOrStringSlice `json:"urls"`
	Username   string              `json:"username"`
	Credential string              `json:"credential"`
}

type stringOrStringSlice []string

func (s *stringOrStringSlice) UnmarshalJSON(b []byte) error {
	var single string
	if err := json.Unmarshal(b, &single); err == nil {
		*s = []string{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

type Fetcher struct {
	url     string
	stun    []string
	timeout time.Duration
	client  *http.Client
}

// NewFetcher returns a fetcher for endpoint. An empty endpoint disables
// TURN and always yields the STUN list.
func NewFetcher(endpoint string, stunURLs []string, timeout time.Duration) *Fetcher {
	return &Fetcher{
		url:     endpoint,
		stun:    stunURLs,
		timeout: timeout,
		client: &http.Client{
			Transport: &http.Transport{DialContext: dns.DialContext},
		},
	}
}

// Defaults is the STUN-only list, one server per URL.
func (f *Fetcher) Defaults() []pion.ICEServer {
	servers := make([]pion.ICEServer, 0, len(f.stun))
	for _, u := range f.stun {
		servers = append(servers, pion.ICEServer{URLs: []string{u}})
	}
	return servers
}

// Fetch queries the credential endpoint and returns the STUN list with the
// TURN server appended. Any failure is a CredentialFetchError.
func (f *Fetcher) Fetch(ctx context.Context) ([]pion.ICEServer, error) {
	if f.url == "" {
		return nil, errs.CredentialFetch("fetch", errors.New("no credential endpoint configured"))
	}

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, errs.CredentialFetch("build request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errs.CredentialFetch("fetch", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, errs.CredentialFetch("fetch", fmt.Errorf("unexpected status %s", resp.Status))
	}

	var body Response
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&body); err != nil {
		return nil, errs.CredentialFetch("decode", err)
	}

	turn, err := body.server()
	if err != nil {
		return nil, errs.CredentialFetch("decode", err)
	}

	return append(f.Defaults(), turn), nil
}

// ICEServers never fails: on any fetch error it logs and returns Defaults.
func (f *Fetcher) ICEServers(ctx context.Context) []pion.ICEServer {
	servers, err := f.Fetch(ctx)
	if err != nil {
		slog.Warn("using STUN-only ICE servers", "error", err)
		return f.Defaults()
	}
	slog.Debug("fetched TURN credentials", "servers", len(servers))
	return servers
}

func (r Response) server() (pion.ICEServer, error) {
	urls := make([]string, 0, len(r.URLs))
	for _, u := range r.URLs {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	if len(urls) == 0 || r.Username == "" || r.Credential == "" {
		return pion.ICEServer{}, errIncomplete
	}
	return pion.ICEServer{
		URLs:       urls,
		Username:   r.Username,
		Credential: r.Credential,
	}, nil
}
