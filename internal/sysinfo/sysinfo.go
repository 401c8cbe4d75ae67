// Package sysinfo records a descriptor of the machine a benchmark ran on,
// persisted with every run so results stay interpretable later.
package sysinfo

import (
	"bufio"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// Info describes the benchmark host.
type Info struct {
	Hostname    string    `json:"hostname"`
	Kernel      string    `json:"kernel"`
	Arch        string    `json:"arch"`
	CPUModel    string    `json:"cpu_model"`
	NumCPU      int       `json:"num_cpu"`
	MemTotalKiB int64     `json:"mem_total_kib"`
	CollectedAt time.Time `json:"collected_at"`
}

// Collect gathers the host descriptor. Collection is best effort: fields a
// platform cannot provide stay zero rather than failing the run.
func Collect() Info {
	info := Info{
		NumCPU:      runtime.NumCPU(),
		Arch:        runtime.GOARCH,
		CollectedAt: time.Now(),
	}

	if hostname, err := os.Hostname(); err == nil {
		info.Hostname = hostname
	}

	var uts unix.Utsname
	if err := unix.Uname(&uts); err == nil {
		info.Kernel = unix.ByteSliceToString(uts.Release[:])
	}

	var si unix.Sysinfo_t
	if err := unix.Sysinfo(&si); err == nil {
		info.MemTotalKiB = int64(si.Totalram) * int64(si.Unit) / 1024
	}

	info.CPUModel = cpuModel("/proc/cpuinfo")

	return info
}

func cpuModel(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		key, val, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		if strings.TrimSpace(key) == "model name" {
			return strings.TrimSpace(val)
		}
	}
	return ""
}

// String renders a one-line summary suitable for progress messages.
func (i Info) String() string {
	return fmt.Sprintf("%s %s %s, %d cores, %d MiB RAM, %s",
		i.Hostname, i.Kernel, i.Arch, i.NumCPU, i.MemTotalKiB/1024, i.CPUModel)
}
