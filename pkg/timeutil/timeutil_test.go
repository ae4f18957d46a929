package timeutil

import (
	"context"
	"math/rand"
	"testing"
	"time"
)

func TestMaxDuration(t *testing.T) {
	tests := []struct {
		name      string
		durations []time.Duration
		want      time.Duration
	}{
		{
			name:      "multiple values returns maximum",
			durations: []time.Duration{100 * time.Millisecond, 500 * time.Millisecond, 200 * time.Millisecond},
			want:      500 * time.Millisecond,
		},
		{
			name:      "single value returns that value",
			durations: []time.Duration{300 * time.Millisecond},
			want:      300 * time.Millisecond,
		},
		{
			name:      "empty slice returns zero",
			durations: []time.Duration{},
			want:      0,
		},
		{
			name:      "negative durations handled correctly",
			durations: []time.Duration{-100 * time.Millisecond, 50 * time.Millisecond, -200 * time.Millisecond},
			want:      50 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MaxDuration(tt.durations)
			if got != tt.want {
				t.Errorf("MaxDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExponentialBackoffDelay(t *testing.T) {
	param := NewBackoffParam(time.Second, 2.0, 30*time.Second)
	rng := rand.New(rand.NewSource(1))

	tests := []struct {
		count int
		want  time.Duration
	}{
		{count: 1, want: 1 * time.Second},
		{count: 2, want: 2 * time.Second},
		{count: 3, want: 4 * time.Second},
		{count: 6, want: 30 * time.Second}, // 32s capped at 30s
		{count: 10, want: 30 * time.Second},
	}
	for _, tt := range tests {
		got := ExponentialBackoffDelay(tt.count, 0, *rng, param)
		if got != tt.want {
			t.Errorf("ExponentialBackoffDelay(count=%d) = %v, want %v", tt.count, got, tt.want)
		}
	}
}

func TestExponentialBackoffDelayJitterBounds(t *testing.T) {
	param := NewBackoffParam(time.Second, 2.0, 30*time.Second)
	jitter := 500 * time.Millisecond
	for i := 0; i < 50; i++ {
		rng := rand.New(rand.NewSource(int64(i)))
		got := ExponentialBackoffDelay(2, jitter, *rng, param)
		if got < 2*time.Second || got >= 2*time.Second+jitter {
			t.Errorf("seed %d: delay %v outside [2s, 2.5s)", i, got)
		}
	}
}

func TestFullJitterBackoffDelayBounds(t *testing.T) {
	for attempt := 1; attempt <= 8; attempt++ {
		for seed := int64(0); seed < 20; seed++ {
			rng := rand.New(rand.NewSource(seed))
			got := FullJitterBackoffDelay(attempt, 32, rng)

			base := 1 << attempt // 2^attempt
			if base > 32 {
				base = 32
			}
			min := time.Duration(float64(base) * 0.5 * float64(time.Second))
			max := time.Duration(base) * time.Second
			if got < min || got > max {
				t.Errorf("attempt %d seed %d: delay %v outside [%v, %v]", attempt, seed, got, min, max)
			}
		}
	}
}

func TestRealSleeperHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := NewRealSleeper().Sleep(ctx, 5*time.Second)
	if err == nil {
		t.Fatal("expected a context error from a cancelled sleep")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("cancelled sleep took %v, want immediate return", elapsed)
	}
}

func TestRealSleeperZeroDuration(t *testing.T) {
	if err := NewRealSleeper().Sleep(context.Background(), 0); err != nil {
		t.Errorf("zero-duration sleep returned %v", err)
	}
}
