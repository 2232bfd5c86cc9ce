package observability

import (
	"os"
	"runtime"

	"github.com/shirou/gopsutil/process"
)

// ProcessStats is the resource usage of the running server.
type ProcessStats struct {
	PID        int32   `json:"pid"`
	RSSBytes   uint64  `json:"rssBytes"`
	CPUPercent float64 `json:"cpuPercent"`
	Threads    int32   `json:"threads"`
	Goroutines int     `json:"goroutines"`
	HeapBytes  uint64  `json:"heapBytes"`
	NumGC      uint32  `json:"numGc"`
}

// CollectProcessStats reads memory and CPU of the current process.
func CollectProcessStats() (ProcessStats, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return ProcessStats{}, err
	}
	return collect(p)
}

func collect(p *process.Process) (ProcessStats, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return ProcessStats{}, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return ProcessStats{}, err
	}
	threads, err := p.NumThreads()
	if err != nil {
		return ProcessStats{}, err
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	return ProcessStats{
		PID:        p.Pid,
		RSSBytes:   memInfo.RSS,
		CPUPercent: cpuPercent,
		Threads:    threads,
		Goroutines: runtime.NumGoroutine(),
		HeapBytes:  memStats.HeapAlloc,
		NumGC:      memStats.NumGC,
	}, nil
}
