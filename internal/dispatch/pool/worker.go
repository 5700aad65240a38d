package pool

import "time"

// HealthWindow is the maximum heartbeat age for a worker to count as healthy.
const HealthWindow = 6 * time.Second

// Worker is one registered execution-service instance.
type Worker struct {
	ID             int64
	Hostname       string
	IP             string
	ServiceURL     string
	JudgerVersion  string
	CPUCoreCount   int
	CPUUsagePct    float64
	MemoryUsagePct float64
	LastHeartbeat  time.Time
	InFlightCount  int
	Disabled       bool
}

// Capacity is the maximum number of concurrent jobs the worker accepts.
func (w *Worker) Capacity() int {
	return 2 * w.CPUCoreCount
}

// Healthy reports whether the worker heartbeated within the health window.
func (w *Worker) Healthy(now time.Time) bool {
	return now.Sub(w.LastHeartbeat) <= HealthWindow
}

// Selectable reports whether the worker may receive another job.
func (w *Worker) Selectable(now time.Time) bool {
	return !w.Disabled && w.Healthy(now) && w.InFlightCount <= w.Capacity()
}

// Status is the health string exposed on the admin API.
func (w *Worker) Status(now time.Time) string {
	if w.Healthy(now) {
		return "normal"
	}
	return "abnormal"
}
