// Package number generates candidate dialable numbers for new accounts.
//
// Candidates are drawn at random from a fixed numbering plan; uniqueness
// is the store's job, callers retry with fresh candidates on collision.
package number

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
)

// DefaultPrefix is the numbering plan prefix all generated numbers share.
const DefaultPrefix = "+1820"

// DefaultSuffixDigits is the number of random digits appended to the prefix.
const DefaultSuffixDigits = 7

// DefaultMaxAttempts bounds how many candidates an allocator should try
// before giving up on finding an unused number.
const DefaultMaxAttempts = 20

// Rand is the source of randomness for candidate generation. The
// interface matches math/rand/v2 so tests can inject a seeded source.
type Rand interface {
	Int64N(n int64) int64
}

// Generator produces candidate numbers within a single numbering plan.
// The zero value is not usable; construct with NewGenerator.
type Generator struct {
	prefix       string
	suffixDigits int
	maxAttempts  int
	rand         Rand
}

// Option configures a Generator.
type Option func(*Generator)

// WithPrefix overrides the numbering plan prefix. It must start with "+"
// followed by digits.
func WithPrefix(prefix string) Option {
	return func(g *Generator) {
		g.prefix = prefix
	}
}

// WithSuffixDigits overrides the number of random digits after the prefix.
func WithSuffixDigits(n int) Option {
	return func(g *Generator) {
		g.suffixDigits = n
	}
}

// WithMaxAttempts overrides the candidate budget reported by MaxAttempts.
func WithMaxAttempts(n int) Option {
	return func(g *Generator) {
		g.maxAttempts = n
	}
}

// WithRand injects a randomness source, typically a seeded one in tests.
func WithRand(r Rand) Option {
	return func(g *Generator) {
		g.rand = r
	}
}

type defaultRand struct{}

func (defaultRand) Int64N(n int64) int64 { return rand.Int64N(n) }

var prefixPattern = regexp.MustCompile(`^\+[0-9]+$`)

// NewGenerator builds a Generator for a numbering plan. Invalid options
// return an error rather than producing malformed numbers.
func NewGenerator(opts ...Option) (*Generator, error) {
	g := &Generator{
		prefix:       DefaultPrefix,
		suffixDigits: DefaultSuffixDigits,
		maxAttempts:  DefaultMaxAttempts,
		rand:         defaultRand{},
	}

	for _, opt := range opts {
		opt(g)
	}

	if !prefixPattern.MatchString(g.prefix) {
		return nil, fmt.Errorf("number: invalid prefix %q", g.prefix)
	}
	if g.suffixDigits < 1 || g.suffixDigits > 12 {
		return nil, fmt.Errorf("number: suffix digits must be between 1 and 12, got %d", g.suffixDigits)
	}
	if g.maxAttempts < 1 {
		return nil, fmt.Errorf("number: max attempts must be positive, got %d", g.maxAttempts)
	}

	return g, nil
}

// Candidate returns one random number within the plan. The suffix is
// zero-padded so every candidate has identical length.
func (g *Generator) Candidate() string {
	limit := int64(1)
	for range g.suffixDigits {
		limit *= 10
	}

	return fmt.Sprintf("%s%0*d", g.prefix, g.suffixDigits, g.rand.Int64N(limit))
}

// MaxAttempts returns the candidate budget for one allocation.
func (g *Generator) MaxAttempts() int {
	return g.maxAttempts
}

// Prefix returns the numbering plan prefix.
func (g *Generator) Prefix() string {
	return g.prefix
}

// Valid reports whether s is a well-formed number within this plan.
func (g *Generator) Valid(s string) bool {
	if !strings.HasPrefix(s, g.prefix) {
		return false
	}

	suffix := strings.TrimPrefix(s, g.prefix)
	if len(suffix) != g.suffixDigits {
		return false
	}

	for _, r := range suffix {
		if r < '0' || r > '9' {
			return false
		}
	}

	return true
}
