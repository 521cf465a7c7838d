package server

import (
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
)

var processStart = time.Now()

// SystemMetrics reports process and host health alongside job state
type SystemMetrics struct {
	UptimeSeconds  int64   `json:"uptimeSeconds"`
	Goroutines     int     `json:"goroutines"`
	HeapAllocBytes uint64  `json:"heapAllocBytes"`
	MemUsedPercent float64 `json:"memUsedPercent"`
}

func getSystemMetrics() SystemMetrics {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	m := SystemMetrics{
		UptimeSeconds:  int64(time.Since(processStart).Seconds()),
		Goroutines:     runtime.NumGoroutine(),
		HeapAllocBytes: ms.HeapAlloc,
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		m.MemUsedPercent = vm.UsedPercent
	}
	return m
}
