package core

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"unicode"
)

// Default sequence positions. The first synthetic ids issued are one above
// these values.
const (
	DefaultPassengerSeq   = 1000
	DefaultTransactionSeq = 40000
)

// Minimum values a source key must reach to be kept as-is.
const (
	minPassengerNumber = 1000
	minTransactionID   = 40000
)

// Sequences holds the synthetic key counters. Each counter stores the last
// issued value and is only ever incremented, so ids are never reused for the
// lifetime of the Sequences. Safe for concurrent use.
type Sequences struct {
	passenger   atomic.Int64
	transaction atomic.Int64
}

// NewSequences returns counters positioned at the given last-issued values.
func NewSequences(passenger, transaction int64) *Sequences {
	s := &Sequences{}
	s.passenger.Store(passenger)
	s.transaction.Store(transaction)
	return s
}

// NextPassenger issues the next synthetic passenger number.
func (s *Sequences) NextPassenger() int64 { return s.passenger.Add(1) }

// NextTransaction issues the next synthetic transaction id.
func (s *Sequences) NextTransaction() int64 { return s.transaction.Add(1) }

// Snapshot returns the last issued passenger and transaction values.
func (s *Sequences) Snapshot() (passenger, transaction int64) {
	return s.passenger.Load(), s.transaction.Load()
}

// KeyNormalizer canonicalizes entity identifiers. Carrier, airport and flight
// keys are pure; passenger keys and transaction ids draw from Sequences when
// the source value is unusable.
type KeyNormalizer struct {
	seq *Sequences
}

// NewKeyNormalizer returns a normalizer owning seq. A nil seq gets default
// starting positions.
func NewKeyNormalizer(seq *Sequences) *KeyNormalizer {
	if seq == nil {
		seq = NewSequences(DefaultPassengerSeq, DefaultTransactionSeq)
	}
	return &KeyNormalizer{seq: seq}
}

// Sequences exposes the counters owned by the normalizer.
func (n *KeyNormalizer) Sequences() *Sequences { return n.seq }

var (
	flightKeyPattern = regexp.MustCompile(`^([A-Z]{1,2})(\d{3,4})`)
	passengerPattern = regexp.MustCompile(`^P\d{4,}$`)
	digitRun         = regexp.MustCompile(`\d+`)
)

// CarrierKey returns the 2-letter carrier code for v.
func (n *KeyNormalizer) CarrierKey(v any) (string, bool) {
	return letterKey(v, 2)
}

// AirportKey returns the 3-letter airport code for v.
func (n *KeyNormalizer) AirportKey(v any) (string, bool) {
	return letterKey(v, 3)
}

// letterKey keeps the letters of v, uppercased, cut or X-padded to size.
// A value with no letters has no key.
func letterKey(v any, size int) (string, bool) {
	s, ok := scalarString(v)
	if !ok {
		return "", false
	}
	letters := keepRunes(strings.ToUpper(s), isASCIILetter)
	if letters == "" {
		return "", false
	}
	if len(letters) >= size {
		return letters[:size], true
	}
	return letters + strings.Repeat("X", size-len(letters)), true
}

// FlightKey returns the carrier-prefixed flight number for v, for example
// "ba1234" -> "BA1234". Values that do not start with the carrier code are
// rebuilt from the letters and digits found anywhere in them.
func (n *KeyNormalizer) FlightKey(v any) (string, bool) {
	s, ok := scalarString(v)
	if !ok {
		return "", false
	}
	s = strings.ToUpper(strings.TrimSpace(s))
	if m := flightKeyPattern.FindStringSubmatch(s); m != nil {
		return m[1] + m[2], true
	}

	letters := keepRunes(s, isASCIILetter)
	digits := keepRunes(s, isASCIIDigit)
	if letters == "" || digits == "" {
		return "", false
	}
	return prefix(letters, 2) + prefix(digits, 4), true
}

// PassengerKey returns "P{number}" for v. It always yields a key: rows with
// no usable number consume the next synthetic passenger id.
func (n *KeyNormalizer) PassengerKey(v any) string {
	s, _ := scalarString(v)
	s = strings.TrimSpace(s)

	if passengerPattern.MatchString(s) {
		return "P" + trimLeadingZeros(s[1:])
	}
	if run := digitRun.FindString(s); run != "" {
		num := trimLeadingZeros(run)
		// More than four significant digits is always >= 1000 and may not
		// fit an int64, so compare by length first.
		if len(num) > 4 {
			return "P" + num
		}
		if x, err := strconv.Atoi(num); err == nil && x >= minPassengerNumber {
			return "P" + num
		}
	}
	return "P" + strconv.FormatInt(n.seq.NextPassenger(), 10)
}

// TransactionID returns v as a transaction id when it is at or above the
// floor, otherwise the next synthetic id.
func (n *KeyNormalizer) TransactionID(v any) int64 {
	if i, ok := scalarInt(v); ok && i >= minTransactionID {
		return i
	}
	if f, ok := scalarNumber(v); ok && f >= minTransactionID && f < math.MaxInt64 {
		return int64(f)
	}
	s, _ := scalarString(v)
	if digits := keepRunes(s, isASCIIDigit); digits != "" {
		if x, err := strconv.ParseInt(digits, 10, 64); err == nil && x >= minTransactionID {
			return x
		}
	}
	return n.seq.NextTransaction()
}

func keepRunes(s string, keep func(rune) bool) string {
	var b strings.Builder
	for _, r := range s {
		if keep(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isASCIILetter(r rune) bool {
	return r < unicode.MaxASCII && unicode.IsLetter(r)
}

func isASCIIDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func prefix(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func trimLeadingZeros(s string) string {
	t := strings.TrimLeft(s, "0")
	if t == "" {
		return "0"
	}
	return t
}
