package entities

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestNewUplId_RoundTripsThroughValidate(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("every generated id validates", prop.ForAll(
		func(base uint64) bool {
			id := NewUplId(base)
			return ValidateUplId(id.String())
		},
		gen.UInt64(),
	))

	properties.TestingRun(t)
}

// TestNewUplId_RoundTripsOverFullDocumentedRange exhaustively checks
// every base in [0, 10^5), the literal range the round-trip invariant
// is specified over, rather than relying on gopter's random sampling to
// happen to cover it.
func TestNewUplId_RoundTripsOverFullDocumentedRange(t *testing.T) {
	for n := uint64(0); n < 100000; n++ {
		id := NewUplId(n)
		if !ValidateUplId(id.String()) {
			t.Fatalf("id for base %d failed validation: %s", n, id.String())
		}
	}
}

// TestNewUplId_UniqueOver50000 exhaustively checks the literal
// 50,000-id uniqueness bound, rather than relying on gopter's random
// sampling to happen to cover it.
func TestNewUplId_UniqueOver50000(t *testing.T) {
	seen := make(map[string]struct{}, 50000)
	for n := uint64(0); n < 50000; n++ {
		id := NewUplId(n).String()
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id generated for base %d: %s", n, id)
		}
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, 50000)
}

func TestNewUplId_DistinctBasesGiveDistinctIds(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("different bases never collide on the rendered id", prop.ForAll(
		func(a, b uint64) bool {
			if a == b {
				return true
			}
			return NewUplId(a).String() != NewUplId(b).String()
		},
		gen.UInt64Range(0, 999999),
		gen.UInt64Range(0, 999999),
	))

	properties.TestingRun(t)
}

func TestValidateUplId_RejectsTampering(t *testing.T) {
	id := NewUplId(4271).String()
	assert.True(t, ValidateUplId(id))

	t.Run("too short", func(t *testing.T) {
		assert.False(t, ValidateUplId("12"))
		assert.False(t, ValidateUplId(""))
	})

	t.Run("non-digit", func(t *testing.T) {
		assert.False(t, ValidateUplId("1a"+id[1:]))
	})

	t.Run("flipped leading digit", func(t *testing.T) {
		flipped := rune('0' + (id[0]-'0'+1)%10)
		assert.False(t, ValidateUplId(string(flipped)+id[1:]))
	})

	t.Run("flipped trailing digit", func(t *testing.T) {
		last := len(id) - 1
		flipped := rune('0' + (id[last]-'0'+1)%10)
		assert.False(t, ValidateUplId(id[:last]+string(flipped)))
	})

	t.Run("mutated inner digit", func(t *testing.T) {
		mid := len(id) / 2
		mutated := rune('0' + (id[mid]-'0'+1)%10)
		assert.False(t, ValidateUplId(id[:mid]+string(mutated)+id[mid+1:]))
	})
}

func TestNewUplId_Zero(t *testing.T) {
	id := NewUplId(0)
	assert.True(t, ValidateUplId(id.String()))
	assert.Equal(t, "0", id.String()[1:len(id.String())-1])
}

func TestDigitsOf(t *testing.T) {
	assert.Equal(t, []int{0}, digitsOf(0))
	assert.Equal(t, []int{1}, digitsOf(1))
	assert.Equal(t, []int{1, 2, 3}, digitsOf(123))
	assert.Equal(t, []int{9, 9, 9, 9}, digitsOf(9999))
}

func TestCalculateCheckDigits_ZeroRemainderWrapsToNine(t *testing.T) {
	// A digit sequence whose weighted sum is already a multiple of 10
	// wraps the leading check digit to 9 and the trailing to 0, rather
	// than 0 and 10.
	first, last := calculateCheckDigits([]int{0})
	assert.Equal(t, 9, first)
	assert.Equal(t, 0, last)
}
