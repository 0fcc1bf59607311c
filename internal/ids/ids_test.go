package ids

import (
	"math/big"
	"math/rand/v2"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare_Table(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1", "1", 0},
		{"1", "2", -1},
		{"2", "1", 1},
		{"9", "10", -1},
		{"10", "9", 1},
		{"0", "1", -1},
		{"109", "110", -1},
		{"110", "109", 1},
		{"18446744073709551615", "18446744073709551616", -1},
		{"99999999999999999999999999", "100000000000000000000000000", -1},
		{"113345678901234567", "113345678901234567", 0},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_vs_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(tt.a, tt.b))
		})
	}
}

func randomID(r *rand.Rand) string {
	n := 1 + r.IntN(40)
	b := make([]byte, n)
	b[0] = byte('1' + r.IntN(9))
	for i := 1; i < n; i++ {
		b[i] = byte('0' + r.IntN(10))
	}
	if n == 1 && r.IntN(10) == 0 {
		return "0"
	}
	return string(b)
}

func TestCompare_AgreesWithBigInt(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 5000; i++ {
		a, b := randomID(r), randomID(r)
		if i%7 == 0 {
			b = a
		}

		ai, ok := new(big.Int).SetString(a, 10)
		require.True(t, ok)
		bi, ok := new(big.Int).SetString(b, 10)
		require.True(t, ok)

		if got, want := Compare(a, b), ai.Cmp(bi); got != want {
			t.Fatalf("Compare(%q, %q) = %d, big.Int says %d", a, b, got, want)
		}
	}
}

func TestLessMaxMin(t *testing.T) {
	assert.True(t, Less("99", "100"))
	assert.False(t, Less("100", "99"))
	assert.False(t, Less("5", "5"))

	assert.Equal(t, "100", Max("99", "100"))
	assert.Equal(t, "99", Min("99", "100"))
	assert.Equal(t, "50", Max(Zero, "50"))
	assert.Equal(t, Zero, Min(Zero, "50"))
}

func TestValid(t *testing.T) {
	for _, s := range []string{"0", "1", "10", "109876543210987654321"} {
		assert.True(t, Valid(s), s)
	}
	for _, s := range []string{"", "01", "00", "-1", "1a", " 1", "1.0"} {
		assert.False(t, Valid(s), s)
	}
}

func TestIncrement(t *testing.T) {
	tests := map[string]string{
		"0":                    "1",
		"3":                    "4",
		"9":                    "10",
		"199":                  "200",
		"999":                  "1000",
		"18446744073709551615": "18446744073709551616",
	}
	for in, want := range tests {
		assert.Equal(t, want, Increment(in), in)
	}
}

func TestIncrement_AgreesWithStrconv(t *testing.T) {
	for i := uint64(0); i < 2000; i++ {
		s := strconv.FormatUint(i, 10)
		require.Equal(t, strconv.FormatUint(i+1, 10), Increment(s))
		require.True(t, Less(s, Increment(s)))
	}
}

func TestSort(t *testing.T) {
	s := []string{"10", "9", "100", "1", "11"}
	SortDesc(s)
	assert.Equal(t, []string{"100", "11", "10", "9", "1"}, s)
	SortAsc(s)
	assert.Equal(t, []string{"1", "9", "10", "11", "100"}, s)
}
