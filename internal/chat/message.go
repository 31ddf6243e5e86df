package chat

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/abdulmanan69/p2pchat/internal/errs"
)

// ChannelLabel is the label of the one data channel each peer pair opens.
const ChannelLabel = "chat"

// Message is the JSON text frame exchanged over the data channel.
type Message struct {
	Text      string    `json:"text"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

func Encode(m Message) (string, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return "", errs.Malformed("encode message", err)
	}
	return string(b), nil
}

// Decode parses an inbound frame. Anything that is not a JSON object with a
// sender is a MalformedMessage.
func Decode(raw []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return Message{}, errs.Malformed("decode message", err)
	}
	if m.Sender == "" {
		return Message{}, errs.Malformed("decode message", errors.New("missing sender"))
	}
	return m, nil
}
