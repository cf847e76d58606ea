package sieve

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isPrimeTrial(n int) bool {
	if n < 2 {
		return false
	}
	if n%2 == 0 {
		return n == 2
	}
	for i := 3; i*i <= n; i += 2 {
		if n%i == 0 {
			return false
		}
	}
	return true
}

func TestPrimesUpTo_MatchesTrialDivision(t *testing.T) {
	const limit = 10000
	got, err := PrimesUpTo(context.Background(), limit)
	require.NoError(t, err)

	var want []int
	for n := 2; n <= limit; n++ {
		if isPrimeTrial(n) {
			want = append(want, n)
		}
	}
	assert.Equal(t, want, got)
}

func TestPrimesUpTo_EveryLimit(t *testing.T) {
	// Маленькие границы проверяем все подряд: здесь чаще всего ошибаются на единицу.
	for limit := 0; limit <= 500; limit++ {
		got, err := PrimesUpTo(context.Background(), limit)
		require.NoError(t, err)

		want := []int{}
		for n := 2; n <= limit; n++ {
			if isPrimeTrial(n) {
				want = append(want, n)
			}
		}
		require.Equal(t, want, got, "limit=%d", limit)
	}
}

func TestPrimesInRange(t *testing.T) {
	tests := []struct {
		name     string
		from, to int
		want     []int
	}{
		{name: "1..20", from: 1, to: 20, want: []int{2, 3, 5, 7, 11, 13, 17, 19}},
		{name: "100..120", from: 100, to: 120, want: []int{101, 103, 107, 109, 113}},
		{name: "990..1000", from: 990, to: 1000, want: []int{991, 997}},
		{name: "prime point", from: 13, to: 13, want: []int{13}},
		{name: "composite point", from: 15, to: 15, want: []int{}},
		{name: "to below 2", from: 1, to: 1, want: []int{}},
		{name: "negative from", from: -10, to: 10, want: []int{2, 3, 5, 7}},
		{name: "inverted", from: 20, to: 10, want: []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PrimesInRange(context.Background(), tt.from, tt.to)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrimesInRange_Counts(t *testing.T) {
	tests := []struct {
		from, to, count int
	}{
		{1, 10, 4},
		{10, 20, 4},
		{20, 30, 2},
		{1, 1000, 168},
		{1, 100000, 9592},
	}

	for _, tt := range tests {
		got, err := PrimesInRange(context.Background(), tt.from, tt.to)
		require.NoError(t, err)
		assert.Len(t, got, tt.count, "диапазон %d-%d", tt.from, tt.to)
	}
}

func TestPrimesUpTo_LimitTooLarge(t *testing.T) {
	_, err := PrimesUpTo(context.Background(), MaxLimit+1)
	assert.ErrorIs(t, err, ErrLimitTooLarge)
}

func TestPrimesUpTo_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := PrimesUpTo(ctx, 2_000_000)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPrimesInRange_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := PrimesInRange(context.Background(), 1, 1000)
			assert.NoError(t, err)
			assert.Len(t, got, 168)
		}()
	}
	wg.Wait()
}

func TestIsqrt(t *testing.T) {
	for _, n := range []int{0, 1, 2, 3, 4, 15, 16, 17, 99, 100, 101, MaxLimit} {
		r := isqrt(n)
		assert.LessOrEqual(t, r*r, n)
		assert.Greater(t, (r+1)*(r+1), n)
	}
}

func BenchmarkPrimesUpTo1e6(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = PrimesUpTo(context.Background(), 1_000_000)
	}
}
