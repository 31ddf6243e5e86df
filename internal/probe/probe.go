// Package probe checks which ICE candidates this host can gather with a
// given server list. A relay candidate means TURN is reachable.
package probe

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	pion "github.com/pion/webrtc/v4"
)

type Candidate struct {
	Type     string
	Protocol string
	Address  string
	Port     uint16
}

type Report struct {
	Servers    []pion.ICEServer
	Candidates []Candidate

	// Counts is keyed by candidate type: host, srflx, prflx, relay.
	Counts map[string]int

	// Complete is false when the wait expired before gathering finished.
	Complete bool
	Elapsed  time.Duration
}

// HasRelay reports whether a TURN relay candidate was gathered.
func (r *Report) HasRelay() bool {
	return r.Counts[pion.ICECandidateTypeRelay.String()] > 0
}

// Types returns the candidate types seen, sorted.
func (r *Report) Types() []string {
	types := make([]string, 0, len(r.Counts))
	for t := range r.Counts {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Run creates a throwaway connection with a data channel, starts gathering
// and collects candidates until gathering completes or wait elapses.
func Run(ctx context.Context, api *pion.API, servers []pion.ICEServer, wait time.Duration) (*Report, error) {
	pc, err := api.NewPeerConnection(pion.Configuration{ICEServers: servers})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}
	defer pc.Close()

	var (
		mu         sync.Mutex
		candidates []Candidate
		done       = make(chan struct{})
		doneOnce   sync.Once
	)
	pc.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil {
			doneOnce.Do(func() { close(done) })
			return
		}
		slog.Debug("gathered candidate", "type", c.Typ, "protocol", c.Protocol, "address", c.Address)
		mu.Lock()
		candidates = append(candidates, Candidate{
			Type:     c.Typ.String(),
			Protocol: c.Protocol.String(),
			Address:  c.Address,
			Port:     c.Port,
		})
		mu.Unlock()
	})

	if _, err := pc.CreateDataChannel("probe", nil); err != nil {
		return nil, fmt.Errorf("create data channel: %w", err)
	}
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return nil, fmt.Errorf("create offer: %w", err)
	}

	start := time.Now()
	if err := pc.SetLocalDescription(offer); err != nil {
		return nil, fmt.Errorf("set local description: %w", err)
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	complete := false
	select {
	case <-done:
		complete = true
	case <-timer.C:
		slog.Debug("probe wait expired before gathering completed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	mu.Lock()
	defer mu.Unlock()

	report := &Report{
		Servers:    servers,
		Candidates: append([]Candidate(nil), candidates...),
		Counts:     make(map[string]int),
		Complete:   complete,
		Elapsed:    time.Since(start),
	}
	for _, c := range report.Candidates {
		report.Counts[c.Type]++
	}
	return report, nil
}
