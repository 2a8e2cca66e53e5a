package number_test

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/xraph/dialtone/number"
)

func seededRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

func TestCandidateFormat(t *testing.T) {
	g, err := number.NewGenerator(number.WithRand(seededRand(1)))
	if err != nil {
		t.Fatalf("NewGenerator failed: %v", err)
	}

	for range 100 {
		c := g.Candidate()
		if !strings.HasPrefix(c, number.DefaultPrefix) {
			t.Fatalf("candidate %q missing prefix %q", c, number.DefaultPrefix)
		}
		if len(c) != len(number.DefaultPrefix)+number.DefaultSuffixDigits {
			t.Fatalf("candidate %q has wrong length %d", c, len(c))
		}
		if !g.Valid(c) {
			t.Fatalf("generator rejects its own candidate %q", c)
		}
	}
}

func TestCandidateZeroPadding(t *testing.T) {
	// A source that always returns 0 exercises the padding path.
	g, err := number.NewGenerator(number.WithRand(zeroRand{}))
	if err != nil {
		t.Fatalf("NewGenerator failed: %v", err)
	}

	if got, want := g.Candidate(), "+18200000000"; got != want {
		t.Errorf("candidate: got %q, want %q", got, want)
	}
}

type zeroRand struct{}

func (zeroRand) Int64N(int64) int64 { return 0 }

func TestCustomPlan(t *testing.T) {
	g, err := number.NewGenerator(
		number.WithPrefix("+44700"),
		number.WithSuffixDigits(6),
		number.WithMaxAttempts(5),
		number.WithRand(seededRand(2)),
	)
	if err != nil {
		t.Fatalf("NewGenerator failed: %v", err)
	}

	if g.MaxAttempts() != 5 {
		t.Errorf("MaxAttempts: got %d, want 5", g.MaxAttempts())
	}
	if g.Prefix() != "+44700" {
		t.Errorf("Prefix: got %q, want %q", g.Prefix(), "+44700")
	}

	c := g.Candidate()
	if !strings.HasPrefix(c, "+44700") || len(c) != len("+44700")+6 {
		t.Errorf("unexpected candidate %q", c)
	}
}

func TestNewGeneratorValidation(t *testing.T) {
	tests := []struct {
		name string
		opts []number.Option
	}{
		{"prefix without plus", []number.Option{number.WithPrefix("1820")}},
		{"prefix with letters", []number.Option{number.WithPrefix("+18a0")}},
		{"empty prefix", []number.Option{number.WithPrefix("")}},
		{"zero suffix digits", []number.Option{number.WithSuffixDigits(0)}},
		{"excessive suffix digits", []number.Option{number.WithSuffixDigits(13)}},
		{"zero attempts", []number.Option{number.WithMaxAttempts(0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := number.NewGenerator(tt.opts...); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestValid(t *testing.T) {
	g, err := number.NewGenerator()
	if err != nil {
		t.Fatalf("NewGenerator failed: %v", err)
	}

	tests := []struct {
		input string
		want  bool
	}{
		{"+18201234567", true},
		{"+18200000000", true},
		{"+1820123456", false},    // short suffix
		{"+182012345678", false},  // long suffix
		{"+18211234567", false},   // wrong prefix
		{"+1820123456a", false},   // non-digit suffix
		{"18201234567", false},    // missing plus
		{"", false},
	}

	for _, tt := range tests {
		if got := g.Valid(tt.input); got != tt.want {
			t.Errorf("Valid(%q): got %v, want %v", tt.input, got, tt.want)
		}
	}
}
