package games

import (
	"crypto/hmac"
	crand "crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
)

// Seeds identify the random stream of one challenge. The server seed is
// kept secret until the challenge is over; its hash can be published up
// front.
type Seeds struct {
	Server string
	Client string
	Nonce  uint64
}

// NewSeeds returns seeds with a fresh 32-byte server seed.
func NewSeeds(client string, nonce uint64) (Seeds, error) {
	var b [32]byte
	if _, err := crand.Read(b[:]); err != nil {
		return Seeds{}, fmt.Errorf("read server seed: %w", err)
	}

	return Seeds{
		Server: hex.EncodeToString(b[:]),
		Client: client,
		Nonce:  nonce,
	}, nil
}

// ServerHash returns the hex SHA-256 of the server seed.
func (s Seeds) ServerHash() string {
	sum := sha256.Sum256([]byte(s.Server))

	return hex.EncodeToString(sum[:])
}

// Stream is a deterministic Rand built from HMAC-SHA256 rounds keyed by the
// server seed over "client:nonce:round". Every float consumes four bytes.
type Stream struct {
	seeds  Seeds
	round  uint64
	pos    int
	buffer [32]byte
}

// NewStream returns a stream positioned at its first byte.
func NewStream(seeds Seeds) *Stream {
	s := &Stream{seeds: seeds}
	s.fill()

	return s
}

func (s *Stream) fill() {
	mac := hmac.New(sha256.New, []byte(s.seeds.Server))
	mac.Write([]byte(s.seeds.Client + ":" + strconv.FormatUint(s.seeds.Nonce, 10) + ":" + strconv.FormatUint(s.round, 10)))
	copy(s.buffer[:], mac.Sum(nil))
	s.pos = 0
}

func (s *Stream) next() byte {
	if s.pos >= len(s.buffer) {
		s.round++
		s.fill()
	}

	b := s.buffer[s.pos]
	s.pos++

	return b
}

// Float64 returns the next float in [0, 1).
func (s *Stream) Float64() float64 {
	var f float64
	div := 1.0
	for range 4 {
		div *= 256
		f += float64(s.next()) / div
	}

	return f
}
