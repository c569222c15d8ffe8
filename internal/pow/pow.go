// Package pow implements the join-time proof-of-work admission gate: a
// joining node binds a token to its own address and a timestamp, and the
// node it is notifying validates the binding, freshness, and difficulty
// before accepting it as predecessor.
package pow

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"
	"math/rand"
	"sync"
	"time"
)

// Token is a (timestamp, nonce, difficulty) triple bound to an address.
type Token struct {
	Address    string
	Timestamp  int64
	Nonce      uint64
	Difficulty int
}

var (
	// ErrWrongAddress is returned when a token is presented by an address
	// other than the one it was computed for.
	ErrWrongAddress = errors.New("pow: token bound to a different address")
	// ErrStale is returned when the token's timestamp is outside the
	// acceptable clock-skew window.
	ErrStale = errors.New("pow: token timestamp outside allowed skew")
	// ErrInsufficientDifficulty is returned when the token's hash does not
	// meet its own claimed difficulty, or its claimed difficulty is below
	// the verifier's configured minimum.
	ErrInsufficientDifficulty = errors.New("pow: insufficient proof-of-work difficulty")
	// ErrReplayed is returned when a token has already been consumed
	// within the dedup window.
	ErrReplayed = errors.New("pow: token already used")
)

// MaxClockSkew bounds how far a token's timestamp may drift from the
// verifier's clock in either direction.
const MaxClockSkew = 60 * time.Second

// DedupWindow is how long a consumed token is remembered to reject replays
// during join storms.
const DedupWindow = 5 * time.Minute

// Compute performs the proof-of-work search for address at the given
// difficulty (minimum leading zero bits of SHA256(address || timestamp ||
// nonce)), using the current wall-clock time as the token's timestamp.
// The search starts from a random nonce so that two tokens computed within
// the same second differ — the timestamp alone only has one-second
// resolution, and the verifier's replay dedup would reject the second of
// two identical tokens.
func Compute(address string, difficulty int) Token {
	ts := time.Now().Unix()
	for nonce := rand.Uint64(); ; nonce++ {
		if leadingZeroBits(digest(address, ts, nonce)) >= difficulty {
			return Token{Address: address, Timestamp: ts, Nonce: nonce, Difficulty: difficulty}
		}
	}
}

func digest(address string, timestamp int64, nonce uint64) [32]byte {
	buf := make([]byte, 0, len(address)+16)
	buf = append(buf, address...)
	var tsBuf, nonceBuf [8]byte
	binary.BigEndian.PutUint64(tsBuf[:], uint64(timestamp))
	binary.BigEndian.PutUint64(nonceBuf[:], nonce)
	buf = append(buf, tsBuf[:]...)
	buf = append(buf, nonceBuf[:]...)
	return sha256.Sum256(buf)
}

func leadingZeroBits(h [32]byte) int {
	count := 0
	for _, b := range h {
		if b == 0 {
			count += 8
			continue
		}
		count += bits.LeadingZeros8(b)
		break
	}
	return count
}

// Verifier validates tokens against an expected address, a minimum
// difficulty, and a replay-dedup window.
type Verifier struct {
	minDifficulty int

	mu   sync.Mutex
	seen map[string]time.Time // token fingerprint -> consumption time
}

// NewVerifier creates a Verifier requiring at least minDifficulty leading
// zero bits.
func NewVerifier(minDifficulty int) *Verifier {
	return &Verifier{minDifficulty: minDifficulty, seen: make(map[string]time.Time)}
}

// Validate checks tok against expectedAddress, rejects stale or
// under-difficulty tokens, and enforces single-use within DedupWindow.
// On success the token is marked consumed.
func (v *Verifier) Validate(tok Token, expectedAddress string) error {
	if tok.Address != expectedAddress {
		return ErrWrongAddress
	}
	if tok.Difficulty < v.minDifficulty {
		return ErrInsufficientDifficulty
	}
	now := time.Now()
	skew := now.Unix() - tok.Timestamp
	if skew > int64(MaxClockSkew.Seconds()) || skew < -int64(MaxClockSkew.Seconds()) {
		return ErrStale
	}
	if leadingZeroBits(digest(tok.Address, tok.Timestamp, tok.Nonce)) < tok.Difficulty {
		return ErrInsufficientDifficulty
	}

	fp := fingerprint(tok)
	v.mu.Lock()
	defer v.mu.Unlock()
	v.evictExpiredLocked(now)
	if _, used := v.seen[fp]; used {
		return ErrReplayed
	}
	v.seen[fp] = now
	return nil
}

func (v *Verifier) evictExpiredLocked(now time.Time) {
	for fp, consumedAt := range v.seen {
		if now.Sub(consumedAt) > DedupWindow {
			delete(v.seen, fp)
		}
	}
}

func fingerprint(tok Token) string {
	return fmt.Sprintf("%s|%d|%d", tok.Address, tok.Timestamp, tok.Nonce)
}
