package core

import (
	"bufio"
	"context"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// SystemStatus is the aggregate shown on the admin status endpoint.
type SystemStatus struct {
	Users struct {
		Total int `json:"total"`
	} `json:"users"`
	Tasks struct {
		Total int `json:"total"`
	} `json:"tasks"`
	Memory struct {
		UsedBytes  uint64 `json:"used_bytes"`
		TotalBytes uint64 `json:"total_bytes"`
		HeapBytes  uint64 `json:"heap_bytes"`
	} `json:"memory"`
	Goroutines    int   `json:"goroutines"`
	UptimeSeconds int64 `json:"uptime_seconds"`
}

// CollectSystemStatus gathers the current status. Store counts are
// required; memory figures are best-effort.
func CollectSystemStatus(ctx context.Context, users UserRepository, tasks TaskRepository, startedAt time.Time) (SystemStatus, error) {
	var st SystemStatus

	var err error
	if st.Users.Total, err = users.Count(ctx); err != nil {
		return SystemStatus{}, err
	}
	if st.Tasks.Total, err = tasks.Count(ctx); err != nil {
		return SystemStatus{}, err
	}

	used, total := readMemInfo()
	st.Memory.UsedBytes = used
	st.Memory.TotalBytes = total
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	st.Memory.HeapBytes = ms.HeapAlloc
	st.Goroutines = runtime.NumGoroutine()

	if !startedAt.IsZero() {
		st.UptimeSeconds = int64(time.Since(startedAt).Seconds())
	}

	return st, nil
}

// readMemInfo returns used and total bytes using /proc/meminfo.
// If unavailable, returns zeros.
func readMemInfo() (used, total uint64) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, 0
	}
	defer f.Close()
	var memTotal, memAvailable uint64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "MemTotal:") {
			memTotal = parseKiBLine(line)
		} else if strings.HasPrefix(line, "MemAvailable:") {
			memAvailable = parseKiBLine(line)
		}
	}
	if memTotal > 0 {
		total = memTotal
		if memAvailable <= memTotal {
			used = memTotal - memAvailable
		}
		used *= 1024
		total *= 1024
	}
	return used, total
}

func parseKiBLine(line string) uint64 {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0
	}
	v, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return 0
	}
	return v
}
