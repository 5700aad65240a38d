package pool

import (
	"testing"
	"time"
)

func TestWorkerHealthy(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name          string
		heartbeatAge  time.Duration
		wantHealthy   bool
		wantSelectStr string
	}{
		{name: "recent heartbeat", heartbeatAge: 5 * time.Second, wantHealthy: true, wantSelectStr: "normal"},
		{name: "stale heartbeat", heartbeatAge: 7 * time.Second, wantHealthy: false, wantSelectStr: "abnormal"},
		{name: "exactly at window", heartbeatAge: HealthWindow, wantHealthy: true, wantSelectStr: "normal"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := Worker{LastHeartbeat: now.Add(-tt.heartbeatAge), CPUCoreCount: 4}
			if got := w.Healthy(now); got != tt.wantHealthy {
				t.Fatalf("Healthy() = %v, want %v", got, tt.wantHealthy)
			}
			if got := w.Status(now); got != tt.wantSelectStr {
				t.Fatalf("Status() = %q, want %q", got, tt.wantSelectStr)
			}
		})
	}
}

func TestWorkerSelectable(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fresh := now.Add(-time.Second)
	tests := []struct {
		name   string
		worker Worker
		want   bool
	}{
		{name: "idle healthy", worker: Worker{LastHeartbeat: fresh, CPUCoreCount: 2}, want: true},
		{name: "at capacity boundary", worker: Worker{LastHeartbeat: fresh, CPUCoreCount: 2, InFlightCount: 4}, want: true},
		{name: "over capacity", worker: Worker{LastHeartbeat: fresh, CPUCoreCount: 2, InFlightCount: 5}, want: false},
		{name: "disabled", worker: Worker{LastHeartbeat: fresh, CPUCoreCount: 2, Disabled: true}, want: false},
		{name: "unhealthy", worker: Worker{LastHeartbeat: now.Add(-7 * time.Second), CPUCoreCount: 2}, want: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.worker.Selectable(now); got != tt.want {
				t.Fatalf("Selectable() = %v, want %v", got, tt.want)
			}
		})
	}
}
