package cache

import (
	"testing"
	"time"
)

func TestExpiryPolicyResolution(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	policy := DefaultExpiryPolicy()
	policy.Now = func() time.Time { return now }

	requestCfg := &TTLConfig{
		Default:   600,
		PerStatus: map[int]int{404: 60},
	}

	tests := []struct {
		name   string
		cfg    *TTLConfig
		status int
		want   time.Time
	}{
		{
			name:   "request per-status entry wins",
			cfg:    requestCfg,
			status: 404,
			want:   now.Add(60 * time.Second),
		},
		{
			name:   "request default for unlisted status",
			cfg:    requestCfg,
			status: 200,
			want:   now.Add(600 * time.Second),
		},
		{
			name:   "request default beats policy recommendation",
			cfg:    requestCfg,
			status: 500,
			want:   now.Add(600 * time.Second),
		},
		{
			name:   "scalar TTL overrides only the default slot",
			cfg:    TTL(120),
			status: 200,
			want:   now.Add(120 * time.Second),
		},
		{
			name:   "no request config, policy recommendation",
			cfg:    nil,
			status: 404,
			want:   now.Add(5 * time.Minute),
		},
		{
			name:   "gone is remembered for weeks",
			cfg:    nil,
			status: 410,
			want:   now.Add(14 * 24 * time.Hour),
		},
		{
			name:   "no config at all, policy default",
			cfg:    nil,
			status: 200,
			want:   now.Add(600 * time.Second),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := policy.ExpireAt(tt.cfg, tt.status)
			if !got.Equal(tt.want) {
				t.Errorf("ExpireAt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExpiryPolicyZeroValue(t *testing.T) {
	// even a zero policy must produce a usable expiry
	var policy ExpiryPolicy
	before := time.Now()
	got := policy.ExpireAt(nil, 200)
	if got.Before(before.Add(DefaultTTL - time.Second)) {
		t.Errorf("zero policy expiry %v too early", got)
	}
}

func TestExpiryPolicyOverridableRecommendations(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	policy := DefaultExpiryPolicy()
	policy.Now = func() time.Time { return now }
	policy.Recommended[404] = 30 * time.Second

	got := policy.ExpireAt(nil, 404)
	if want := now.Add(30 * time.Second); !got.Equal(want) {
		t.Errorf("ExpireAt() = %v, want %v", got, want)
	}
}
