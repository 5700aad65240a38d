// Package sysinfo reports host identity and utilization for worker
// heartbeats and ping responses.
package sysinfo

import (
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"rivoj/internal/judgeapi"
)

// JudgerVersion identifies the sandbox contract a worker implements. It is
// reported in heartbeats so operators can spot stale deployments.
const JudgerVersion = "2.1.1"

const (
	procStatPath = "/proc/stat"
	meminfoPath  = "/proc/meminfo"
)

// Collector samples /proc counters. CPU usage is computed from the delta
// between successive snapshots, so the first reading reports zero.
type Collector struct {
	statPath    string
	meminfoPath string

	mu        sync.Mutex
	prevIdle  uint64
	prevTotal uint64
}

// NewCollector creates a collector reading the live /proc files.
func NewCollector() *Collector {
	return &Collector{statPath: procStatPath, meminfoPath: meminfoPath}
}

// Snapshot returns the current server info. Unreadable counters degrade to
// zero rather than failing the heartbeat.
func (c *Collector) Snapshot() judgeapi.ServerInfo {
	hostname, _ := os.Hostname()
	return judgeapi.ServerInfo{
		Hostname:       hostname,
		JudgerVersion:  JudgerVersion,
		CPUCore:        runtime.NumCPU(),
		CPUUsagePct:    c.cpuUsagePct(),
		MemoryUsagePct: memoryUsagePct(c.meminfoPath),
	}
}

func (c *Collector) cpuUsagePct() float64 {
	data, err := os.ReadFile(c.statPath)
	if err != nil {
		return 0
	}
	idle, total, ok := parseCPUStat(string(data))
	if !ok {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	defer func() {
		c.prevIdle, c.prevTotal = idle, total
	}()

	if c.prevTotal == 0 || total <= c.prevTotal {
		return 0
	}
	totalDelta := total - c.prevTotal
	idleDelta := idle - c.prevIdle
	if idleDelta > totalDelta {
		return 0
	}
	return float64(totalDelta-idleDelta) / float64(totalDelta) * 100
}

// parseCPUStat extracts the aggregate idle and total jiffies from the first
// "cpu " line of /proc/stat.
func parseCPUStat(content string) (idle, total uint64, ok bool) {
	for _, line := range strings.Split(content, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 5 || fields[0] != "cpu" {
			continue
		}
		for i, field := range fields[1:] {
			v, err := strconv.ParseUint(field, 10, 64)
			if err != nil {
				return 0, 0, false
			}
			total += v
			// idle + iowait
			if i == 3 || i == 4 {
				idle += v
			}
		}
		return idle, total, true
	}
	return 0, 0, false
}

func memoryUsagePct(path string) float64 {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	return parseMeminfo(string(data))
}

func parseMeminfo(content string) float64 {
	var totalKB, availableKB uint64
	for _, line := range strings.Split(content, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		v, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			continue
		}
		switch fields[0] {
		case "MemTotal:":
			totalKB = v
		case "MemAvailable:":
			availableKB = v
		}
	}
	if totalKB == 0 || availableKB > totalKB {
		return 0
	}
	return float64(totalKB-availableKB) / float64(totalKB) * 100
}
