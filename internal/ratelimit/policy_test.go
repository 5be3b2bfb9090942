package ratelimit

import "testing"

func TestClampLimit(t *testing.T) {
	cases := []struct {
		in   int
		want int
	}{
		{-5, 15},
		{-1, 15},
		{0, 0},
		{15, 15},
		{500, 500},
		{1_000_000, 1_000_000},
		{1_000_001, 15},
		{2_000_000, 15},
	}
	for _, tc := range cases {
		if got := ClampLimit(tc.in); got != tc.want {
			t.Errorf("ClampLimit(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestClampLimit_Idempotent(t *testing.T) {
	for _, in := range []int{-5, 0, 15, 500, 1_000_000, 2_000_000} {
		once := ClampLimit(in)
		if twice := ClampLimit(once); twice != once {
			t.Errorf("ClampLimit not idempotent for %d: once=%d twice=%d", in, once, twice)
		}
	}
}

func TestClampPeriodMinutes(t *testing.T) {
	cases := []struct {
		in   int
		want int
	}{
		{0, DefaultRateLimitPeriodMinutes},
		{MinRateLimitPeriodMinutes - 1, DefaultRateLimitPeriodMinutes},
		{MinRateLimitPeriodMinutes, MinRateLimitPeriodMinutes},
		{60, 60},
		{MaxRateLimitPeriodMinutes, MaxRateLimitPeriodMinutes},
		{MaxRateLimitPeriodMinutes + 1, DefaultRateLimitPeriodMinutes},
	}
	for _, tc := range cases {
		if got := ClampPeriodMinutes(tc.in); got != tc.want {
			t.Errorf("ClampPeriodMinutes(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
