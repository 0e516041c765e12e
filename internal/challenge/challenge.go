// Package challenge implements the Challenge value type: its minting,
// expiry predicate, and its two wire encodings (JSON and the fixed-layout
// binary format).
package challenge

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"powchallenge/internal/site"
)

// Prefix is an opaque random byte string a solution must be concatenated
// onto before hashing.
type Prefix []byte

// Parameters is the snapshot of a site's solving requirements taken at
// issuance time. It is authoritative for verification even if the site's
// live configuration were to change afterwards.
type Parameters struct {
	Difficulty      int
	PrefixesToSolve int
	SolutionLength  int
}

// Challenge is an issued puzzle: a fixed set of prefixes to be completed
// before expiresAt, under the site parameters captured at mint time.
// Challenge is immutable after construction.
type Challenge struct {
	ID        uuid.UUID
	Prefixes  []Prefix
	ExpiresAt time.Time
	Params    Parameters
}

// ErrNoPrefixes is returned by MarshalBinary when there are zero prefixes,
// since the binary layout has no way to record a prefix length in that case.
var ErrNoPrefixes = errors.New("challenge: cannot encode binary form with zero prefixes")

// Generate mints a fresh Challenge for site s: a new random id, prefixCount
// prefixes of prefixLength cryptographically random bytes each, and an
// expiry of now+lifetime.
func Generate(s site.Site, now time.Time) (Challenge, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return Challenge{}, fmt.Errorf("challenge: failed to generate id: %w", err)
	}

	prefixes := make([]Prefix, s.PrefixCount)
	for i := range prefixes {
		p := make([]byte, s.PrefixLength)
		if _, err := rand.Read(p); err != nil {
			return Challenge{}, fmt.Errorf("challenge: failed to generate prefix: %w", err)
		}
		prefixes[i] = p
	}

	return Challenge{
		ID:        id,
		Prefixes:  prefixes,
		ExpiresAt: now.Add(s.Lifetime),
		Params: Parameters{
			Difficulty:      s.Difficulty,
			PrefixesToSolve: s.PrefixesToSolve,
			SolutionLength:  s.SolutionLength,
		},
	}, nil
}

// IsExpired reports whether now is strictly after the challenge's expiry.
func (c Challenge) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// wireChallenge is the camelCase JSON shape of spec §6. The misspelling of
// "challengesToSolve" as "challegesToSolve" is preserved deliberately: it is
// part of the wire contract (see SPEC_FULL.md's Open Questions).
type wireChallenge struct {
	ID               uuid.UUID `json:"id"`
	Prefixes         []string  `json:"prefixes"`
	Difficulty       int       `json:"difficulty"`
	ChallegesToSolve int       `json:"challegesToSolve"`
	SolutionLength   int       `json:"solutionLength"`
	ExpiresAt        int64     `json:"expiresAt"`
}

// MarshalJSON encodes the challenge in the wire format clients expect: base64
// prefixes and a unix-seconds expiry.
func (c Challenge) MarshalJSON() ([]byte, error) {
	prefixes := make([]string, len(c.Prefixes))
	for i, p := range c.Prefixes {
		prefixes[i] = base64.StdEncoding.EncodeToString(p)
	}

	return json.Marshal(wireChallenge{
		ID:               c.ID,
		Prefixes:         prefixes,
		Difficulty:       c.Params.Difficulty,
		ChallegesToSolve: c.Params.PrefixesToSolve,
		SolutionLength:   c.Params.SolutionLength,
		ExpiresAt:        c.ExpiresAt.Unix(),
	})
}

// UnmarshalJSON is the inverse of MarshalJSON, primarily useful to test
// clients and to the solver in internal/client.
func (c *Challenge) UnmarshalJSON(data []byte) error {
	var w wireChallenge
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	prefixes := make([]Prefix, len(w.Prefixes))
	for i, p := range w.Prefixes {
		decoded, err := base64.StdEncoding.DecodeString(p)
		if err != nil {
			return fmt.Errorf("challenge: failed to decode prefix %d: %w", i, err)
		}
		prefixes[i] = decoded
	}

	c.ID = w.ID
	c.Prefixes = prefixes
	c.ExpiresAt = time.Unix(w.ExpiresAt, 0).UTC()
	c.Params = Parameters{
		Difficulty:      w.Difficulty,
		PrefixesToSolve: w.ChallegesToSolve,
		SolutionLength:  w.SolutionLength,
	}
	return nil
}

// magicBytes begins every binary-encoded Challenge.
var magicBytes = [3]byte{0x12, 0x0A, 0x01}

const binaryHeaderSize = 60 // offset at which prefix blobs begin

// ErrUnexpectedEnd is returned by UnmarshalBinary when the buffer is too
// short to contain a full header or the prefix blobs it promises.
var ErrUnexpectedEnd = errors.New("challenge: unexpected end of buffer")

// MismatchedMagicError is returned by UnmarshalBinary when the leading 3
// bytes don't match the expected magic sequence.
type MismatchedMagicError struct {
	Expected [3]byte
	Found    [3]byte
}

func (e *MismatchedMagicError) Error() string {
	return fmt.Sprintf("challenge: mismatched magic bytes: expected %x, found %x", e.Expected, e.Found)
}

// MarshalBinary encodes the challenge in the fixed little-endian layout:
// magic bytes, id, expiry seconds, difficulty, then prefix count, prefixes
// to solve, solution length and prefix length as u64s, followed by the
// concatenated prefix blobs. All prefixes must share the same length;
// Generate always produces such a challenge.
func (c Challenge) MarshalBinary() ([]byte, error) {
	if len(c.Prefixes) == 0 {
		return nil, ErrNoPrefixes
	}

	prefixLength := len(c.Prefixes[0])
	buf := make([]byte, binaryHeaderSize+len(c.Prefixes)*prefixLength)

	copy(buf[0:3], magicBytes[:])
	copy(buf[3:19], c.ID[:])
	binary.LittleEndian.PutUint64(buf[19:27], uint64(c.ExpiresAt.Unix()))
	buf[27] = byte(c.Params.Difficulty)
	binary.LittleEndian.PutUint64(buf[28:36], uint64(len(c.Prefixes)))
	binary.LittleEndian.PutUint64(buf[36:44], uint64(c.Params.PrefixesToSolve))
	binary.LittleEndian.PutUint64(buf[44:52], uint64(c.Params.SolutionLength))
	binary.LittleEndian.PutUint64(buf[52:60], uint64(prefixLength))

	offset := binaryHeaderSize
	for _, p := range c.Prefixes {
		copy(buf[offset:offset+prefixLength], p)
		offset += prefixLength
	}

	return buf, nil
}

// UnmarshalBinary is the inverse of MarshalBinary.
func UnmarshalBinary(data []byte) (Challenge, error) {
	if len(data) < 3 {
		return Challenge{}, ErrUnexpectedEnd
	}

	var found [3]byte
	copy(found[:], data[0:3])
	if found != magicBytes {
		return Challenge{}, &MismatchedMagicError{Expected: magicBytes, Found: found}
	}

	if len(data) < binaryHeaderSize {
		return Challenge{}, ErrUnexpectedEnd
	}

	var id uuid.UUID
	copy(id[:], data[3:19])

	expiresAt := time.Unix(int64(binary.LittleEndian.Uint64(data[19:27])), 0).UTC()
	difficulty := int(data[27])
	prefixCount := binary.LittleEndian.Uint64(data[28:36])
	prefixesToSolve := binary.LittleEndian.Uint64(data[36:44])
	solutionLength := binary.LittleEndian.Uint64(data[44:52])
	prefixLength := binary.LittleEndian.Uint64(data[52:60])

	want := int(prefixCount) * int(prefixLength)
	if len(data[binaryHeaderSize:]) < want {
		return Challenge{}, ErrUnexpectedEnd
	}

	prefixes := make([]Prefix, prefixCount)
	offset := binaryHeaderSize
	for i := range prefixes {
		p := make([]byte, prefixLength)
		copy(p, data[offset:offset+int(prefixLength)])
		prefixes[i] = p
		offset += int(prefixLength)
	}

	return Challenge{
		ID:        id,
		Prefixes:  prefixes,
		ExpiresAt: expiresAt,
		Params: Parameters{
			Difficulty:      difficulty,
			PrefixesToSolve: int(prefixesToSolve),
			SolutionLength:  int(solutionLength),
		},
	}, nil
}
