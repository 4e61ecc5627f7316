package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/process"
)

// MemoryStats holds memory usage information
type MemoryStats struct {
	// Go runtime memory stats
	HeapAllocMB  float64 `json:"heap_alloc_mb"` // Currently allocated heap memory (MB)
	HeapSysMB    float64 `json:"heap_sys_mb"`   // Heap memory obtained from the OS (MB)
	NumGoroutine int     `json:"goroutines"`

	// Process memory stats (from OS perspective)
	RSSMB      float64 `json:"rss_mb"`      // Resident Set Size (MB)
	VMSMB      float64 `json:"vms_mb"`      // Virtual Memory Size (MB)
	CPUPercent float64 `json:"cpu_percent"` // CPU usage since process start
}

const mb = 1024 * 1024

// GetMemoryStats returns memory usage for the current process.
// The runtime part is always filled, even when the OS query fails.
func GetMemoryStats() (*MemoryStats, error) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	stats := &MemoryStats{
		HeapAllocMB:  float64(m.HeapAlloc) / mb,
		HeapSysMB:    float64(m.HeapSys) / mb,
		NumGoroutine: runtime.NumGoroutine(),
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return stats, err
	}
	memInfo, err := proc.MemoryInfo()
	if err != nil {
		return stats, err
	}
	stats.RSSMB = float64(memInfo.RSS) / mb
	stats.VMSMB = float64(memInfo.VMS) / mb

	if cpu, err := proc.CPUPercent(); err == nil {
		stats.CPUPercent = cpu
	}
	return stats, nil
}

// String returns a formatted string of memory stats
func (m *MemoryStats) String() string {
	return fmt.Sprintf("RSS=%.1fMB VMS=%.1fMB HeapAlloc=%.1fMB HeapSys=%.1fMB CPU=%.1f%% Goroutines=%d",
		m.RSSMB, m.VMSMB, m.HeapAllocMB, m.HeapSysMB, m.CPUPercent, m.NumGoroutine)
}

// GetMemoryStatsString is GetMemoryStats for log lines
func GetMemoryStatsString() string {
	stats, err := GetMemoryStats()
	if err != nil {
		return fmt.Sprintf("Error getting memory stats: %v", err)
	}
	return stats.String()
}
