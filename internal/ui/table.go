package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/abdulmanan69/p2pchat/internal/probe"
	"github.com/abdulmanan69/p2pchat/internal/session"
	"github.com/jedib0t/go-pretty/v6/table"
	pion "github.com/pion/webrtc/v4"
)

func newTable(title string) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Options.SeparateRows = false
	if title != "" {
		tw.SetTitle(title)
	}
	return tw
}

// ICEServersView lists ICE servers without revealing credentials.
func ICEServersView(servers []pion.ICEServer) string {
	if len(servers) == 0 {
		return MutedStyle.Render("No ICE servers configured")
	}

	tw := newTable("ICE servers")
	tw.AppendHeader(table.Row{"#", "URLs", "Kind", "Auth"})
	for i, s := range servers {
		kind := "stun"
		for _, u := range s.URLs {
			if strings.HasPrefix(u, "turn:") || strings.HasPrefix(u, "turns:") {
				kind = "turn"
			}
		}
		auth := "-"
		if s.Username != "" {
			auth = "yes"
		}
		tw.AppendRow(table.Row{i + 1, strings.Join(s.URLs, "\n"), kind, auth})
	}
	return tw.Render()
}

// ProbeReportView summarizes gathered candidates by type.
func ProbeReportView(r *probe.Report) string {
	tw := newTable("Candidates")
	tw.AppendHeader(table.Row{"Type", "Count"})
	for _, typ := range r.Types() {
		tw.AppendRow(table.Row{typ, r.Counts[typ]})
	}
	tw.AppendFooter(table.Row{"Total", len(r.Candidates)})

	var verdict string
	switch {
	case r.HasRelay():
		verdict = SuccessStyle.Render("TURN relay reachable")
	case r.Counts["srflx"] > 0:
		verdict = WarningStyle.Render("No relay candidates; direct and STUN paths only")
	default:
		verdict = ErrorStyle.Render("Only local candidates; peers behind other NATs will not connect")
	}

	gathering := "complete"
	if !r.Complete {
		gathering = "timed out"
	}

	return fmt.Sprintf("%s\n%s\n%s",
		tw.Render(),
		MutedStyle.Render(fmt.Sprintf("gathering %s after %s", gathering, r.Elapsed.Round(10*time.Millisecond))),
		verdict,
	)
}

// PeersView lists the session's peers.
func PeersView(peers []session.PeerInfo) string {
	if len(peers) == 0 {
		return MutedStyle.Render("No peers yet")
	}

	tw := newTable("")
	tw.AppendHeader(table.Row{"Peer", "Role", "State", "Since"})
	for _, p := range peers {
		tw.AppendRow(table.Row{p.ID, p.Role, p.State, p.CreatedAt.Format("15:04:05")})
	}
	return tw.Render()
}

type RoomInfo struct {
	RoomID   string
	RoomLink string
}

func NewRoomInfo(roomID, roomLink string) *RoomInfo {
	return &RoomInfo{
		RoomID:   roomID,
		RoomLink: roomLink,
	}
}

func (r *RoomInfo) View() string {
	content := fmt.Sprintf("%s Room ready\n\n%s Room ID:    %s\n%s Room Link:  %s",
		IconChat,
		IconCopy, BoldStyle.Foreground(CurrentTheme().palette().Primary).Render(r.RoomID),
		IconWeb, MutedStyle.Render(r.RoomLink),
	)
	return RoomBoxStyle.Render(content)
}
