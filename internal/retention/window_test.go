// internal/retention/window_test.go
package retention

import (
    "testing"
    "time"
)

func TestCutoff(t *testing.T) {
    now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

    tests := []struct {
        name string
        days float64
        want time.Time
    }{
        {"seven days", 7, now.Add(-7 * 24 * time.Hour)},
        {"half day", 0.5, now.Add(-12 * time.Hour)},
        {"one minute expressed in days", 1.0 / 1440, now.Add(-time.Minute)},
        {"ten years", 3650, now.Add(-3650 * 24 * time.Hour)},
    }

    for _, tt := range tests {
        t.Run(tt.name, func(t *testing.T) {
            got := Cutoff(tt.days, now)
            if !got.Equal(tt.want) {
                t.Errorf("Cutoff(%v) = %v, want %v", tt.days, got, tt.want)
            }
        })
    }
}

func TestCutoffMonotonic(t *testing.T) {
    now := time.Now()
    shorter := Cutoff(1, now)
    longer := Cutoff(30, now)

    if !longer.Before(shorter) {
        t.Errorf("longer retention must yield earlier cutoff: 30d=%v 1d=%v", longer, shorter)
    }
}

func TestCutoffPanicsOnNonPositive(t *testing.T) {
    for _, days := range []float64{0, -1} {
        func() {
            defer func() {
                if recover() == nil {
                    t.Errorf("Cutoff(%v) should panic", days)
                }
            }()
            Cutoff(days, time.Now())
        }()
    }
}
