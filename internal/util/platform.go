package util

import (
	"fmt"
	"net"
	"os"
	"runtime"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

const (
	mib = 1024 * 1024
	gib = 1024 * mib
)

// SystemInfo describes the host the server runs on. It is logged at startup,
// sent with MQTT messages and served on /api/system.
type SystemInfo struct {
	Platform     string `json:"platform"`
	Hostname     string `json:"hostname"`
	OS           string `json:"os"`
	Architecture string `json:"architecture"`
	GoVersion    string `json:"go_version"`
	CPUModel     string `json:"cpu_model"`
	CPUCores     int    `json:"cpu_cores"`
	TotalMemory  uint64 `json:"total_memory_mb"`
}

// GetSystemInfo gathers system information. Fields gopsutil cannot read are
// left empty.
func GetSystemInfo() SystemInfo {
	info := SystemInfo{
		Platform:     runtime.GOOS,
		Architecture: runtime.GOARCH,
		GoVersion:    runtime.Version(),
		CPUCores:     runtime.NumCPU(),
	}
	if hostname, err := os.Hostname(); err == nil {
		info.Hostname = hostname
	}
	if hostInfo, err := host.Info(); err == nil {
		info.OS = fmt.Sprintf("%s %s", hostInfo.Platform, hostInfo.PlatformVersion)
	}
	if cpuInfo, err := cpu.Info(); err == nil && len(cpuInfo) > 0 {
		info.CPUModel = cpuInfo[0].ModelName
	}
	if memInfo, err := mem.VirtualMemory(); err == nil {
		info.TotalMemory = memInfo.Total / mib
	}
	return info
}

// GetLocalIP returns the first non-loopback IPv4 address, which is what LAN
// players type to join.
func GetLocalIP() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}
	for _, addr := range addrs {
		if ipNet, ok := addr.(*net.IPNet); ok && !ipNet.IP.IsLoopback() && ipNet.IP.To4() != nil {
			return ipNet.IP.String(), nil
		}
	}
	return "127.0.0.1", nil
}

// DiskUsage is the usage of the volume holding a path, in GB.
type DiskUsage struct {
	Total       uint64  `json:"total_gb"`
	Used        uint64  `json:"used_gb"`
	Free        uint64  `json:"free_gb"`
	UsedPercent float64 `json:"used_percent"`
}

// GetDiskUsage returns disk usage for the volume holding path.
func GetDiskUsage(path string) (*DiskUsage, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return nil, err
	}
	return &DiskUsage{
		Total:       usage.Total / gib,
		Used:        usage.Used / gib,
		Free:        usage.Free / gib,
		UsedPercent: usage.UsedPercent,
	}, nil
}

// MemoryUsage is host memory usage in MB.
type MemoryUsage struct {
	Total       uint64  `json:"total_mb"`
	Used        uint64  `json:"used_mb"`
	Available   uint64  `json:"available_mb"`
	UsedPercent float64 `json:"used_percent"`
}

// ProcessUsage is the footprint of the server process itself.
type ProcessUsage struct {
	RSS        uint64  `json:"rss_mb"`
	CPUPercent float64 `json:"cpu_percent"`
	Threads    int32   `json:"threads"`
	Goroutines int     `json:"goroutines"`
}

// GetProcessUsage reads the footprint of the current process.
func GetProcessUsage() (*ProcessUsage, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to read process memory: %w", err)
	}
	u := &ProcessUsage{RSS: memInfo.RSS / mib, Goroutines: runtime.NumGoroutine()}
	if pct, err := p.CPUPercent(); err == nil {
		u.CPUPercent = pct
	}
	if n, err := p.NumThreads(); err == nil {
		u.Threads = n
	}
	return u, nil
}

// FileExists checks if a file or directory exists at the given path.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// EnsureDir creates a directory and its parents.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// Usage is a point-in-time view of host and process load.
type Usage struct {
	CPUPercent float64       `json:"cpu_percent"`
	Memory     *MemoryUsage  `json:"memory,omitempty"`
	Disk       *DiskUsage    `json:"disk,omitempty"`
	Process    *ProcessUsage `json:"process,omitempty"`
}

// GetUsage gathers CPU, memory, disk and process usage, with the disk
// measured at path. Readings that fail are left empty.
func GetUsage(path string) Usage {
	var u Usage
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		u.CPUPercent = pct[0]
	} else if err != nil {
		log.Debug().Err(err).Msg("cpu usage unavailable")
	}
	if m, err := mem.VirtualMemory(); err == nil {
		u.Memory = &MemoryUsage{
			Total:       m.Total / mib,
			Used:        m.Used / mib,
			Available:   m.Available / mib,
			UsedPercent: m.UsedPercent,
		}
	}
	if d, err := GetDiskUsage(path); err == nil {
		u.Disk = d
	}
	if p, err := GetProcessUsage(); err == nil {
		u.Process = p
	} else {
		log.Debug().Err(err).Msg("process usage unavailable")
	}
	return u
}
