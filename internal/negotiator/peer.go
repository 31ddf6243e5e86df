package negotiator

import (
	"encoding/json"
	"fmt"

	"github.com/abdulmanan69/p2pchat/internal/chat"
	"github.com/abdulmanan69/p2pchat/internal/errs"
	"github.com/abdulmanan69/p2pchat/internal/logging"
	"github.com/abdulmanan69/p2pchat/internal/utils"
	pion "github.com/pion/webrtc/v4"
)

// NewAPI builds the pion API used for every connection. configure may adjust
// the setting engine, e.g. to bind a virtual network in tests.
func NewAPI(configure func(*pion.SettingEngine)) *pion.API {
	se := pion.SettingEngine{LoggerFactory: logging.PionFactory()}
	if configure != nil {
		configure(&se)
	}
	return pion.NewAPI(pion.WithSettingEngine(se))
}

func newPeerConnection(api *pion.API, servers []pion.ICEServer, forceRelay bool) (*pion.PeerConnection, error) {
	return api.NewPeerConnection(pion.Configuration{
		ICEServers:         servers,
		ICETransportPolicy: utils.TransportPolicy(forceRelay, servers),
	})
}

func createChatChannel(pc *pion.PeerConnection) (*pion.DataChannel, error) {
	ordered := true
	return pc.CreateDataChannel(chat.ChannelLabel, &pion.DataChannelInit{Ordered: &ordered})
}

func createOffer(pc *pion.PeerConnection) (string, error) {
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("create offer: %w", err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		return "", fmt.Errorf("set local description: %w", err)
	}
	return pc.LocalDescription().SDP, nil
}

func createAnswer(pc *pion.PeerConnection) (string, error) {
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("create answer: %w", err)
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("set local description: %w", err)
	}
	return pc.LocalDescription().SDP, nil
}

func encodeCandidate(c pion.ICECandidateInit) (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeCandidate(raw string) (pion.ICECandidateInit, error) {
	var c pion.ICECandidateInit
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return c, errs.Malformed("decode candidate", err)
	}
	if c.Candidate == "" {
		return c, errs.Malformed("decode candidate", fmt.Errorf("empty candidate"))
	}
	return c, nil
}
