package identity

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
)

const (
	idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	idHalfLen  = 10
)

var (
	nameAdjectives = []string{"Red", "Blue", "Green", "Yellow", "Purple", "Orange", "Pink", "Black", "White", "Silver"}
	nameNouns      = []string{"Tiger", "Dragon", "Eagle", "Wolf", "Bear", "Fox", "Lion", "Hawk", "Shark", "Panther"}
)

// Identity is the per-process session identity. It is never persisted.
type Identity struct {
	PeerID      string
	DisplayName string
}

func New() Identity {
	return newWith(randomIndex)
}

func newWith(intn func(int) int) Identity {
	return Identity{
		PeerID:      randomBase36(intn, idHalfLen) + randomBase36(intn, idHalfLen),
		DisplayName: fmt.Sprintf("%s%s%d", pick(intn, nameAdjectives), pick(intn, nameNouns), intn(100)),
	}
}

// NewRoomID returns a memorable room id such as "sleepy-ramen-comet".
func NewRoomID() string {
	return newRoomIDWith(randomIndex)
}

func newRoomIDWith(intn func(int) int) string {
	lists := [][]string{adjectives, dishes, extras}
	words := make([]string, len(lists))
	for i, list := range lists {
		words[i] = pick(intn, list)
	}
	return strings.Join(words, "-")
}

func randomBase36(intn func(int) int, n int) string {
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		b.WriteByte(idAlphabet[intn(len(idAlphabet))])
	}
	return b.String()
}

func pick(intn func(int) int, list []string) string {
	return list[intn(len(list))]
}

// randomIndex returns a cryptographically secure random index in [0, max).
func randomIndex(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		slog.Error("crypto/rand unavailable", "error", err)
		panic(err)
	}
	return int(n.Int64())
}
