// Package sysmon samples system-wide resource usage at a fixed interval
// while a benchmark run is in flight. It runs decoupled from the measured
// process tree and appends every record to a durable log as it is produced,
// so a crash mid-run still yields partial data.
package sysmon

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/toolbench/toolbench/api"
)

// Sampler is a running background sampling loop. Create one with Start.
type Sampler struct {
	interval time.Duration
	match    []string

	logFile *os.File

	mu      sync.Mutex
	records []api.SamplerRecord

	stopOnce sync.Once
	stopc    chan struct{}
	donec    chan struct{}

	prevCPU cpuTimes
	ncpu    int
}

// Start begins sampling every interval. match lists process names counted
// per tick (substring match against /proc cmdlines). The log at logPath is
// truncated and receives one whitespace-separated line per record.
func Start(interval time.Duration, match []string, logPath string) (*Sampler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("sampler interval must be positive, got %v", interval)
	}

	logFile, err := os.Create(logPath)
	if err != nil {
		return nil, fmt.Errorf("create sampler log: %w", err)
	}

	prev, err := readCPUTimes(procStatPath)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("read initial cpu counters: %w", err)
	}

	s := &Sampler{
		interval: interval,
		match:    match,
		logFile:  logFile,
		stopc:    make(chan struct{}),
		donec:    make(chan struct{}),
		prevCPU:  prev,
		ncpu:     runtime.NumCPU(),
	}
	go s.loop()
	return s, nil
}

// Stop ends sampling and returns all records produced so far, ordered by
// timestamp. Stopping an already stopped sampler is a no-op and returns the
// same records.
func (s *Sampler) Stop() []api.SamplerRecord {
	s.stopOnce.Do(func() {
		close(s.stopc)
	})
	<-s.donec

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]api.SamplerRecord, len(s.records))
	copy(out, s.records)
	return out
}

func (s *Sampler) loop() {
	defer close(s.donec)
	defer s.logFile.Close()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopc:
			return
		case <-ticker.C:
			rec, err := s.sample()
			if err != nil {
				// A transient counter read failure never aborts the sampler.
				slog.Warn("skipping failed sample", "error", err)
				continue
			}
			s.append(rec)
		}
	}
}

func (s *Sampler) sample() (api.SamplerRecord, error) {
	var rec api.SamplerRecord
	rec.UnixMillis = time.Now().UnixMilli()

	cur, err := readCPUTimes(procStatPath)
	if err != nil {
		return rec, fmt.Errorf("cpu counters: %w", err)
	}
	// Two consecutive cumulative snapshots diffed, not an instantaneous
	// gauge. Scaled by core count so a saturated 8-core machine reads 800.
	rec.CPUPct = round1(cpuBusyPct(s.prevCPU, cur) * float64(s.ncpu))
	s.prevCPU = cur

	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return rec, fmt.Errorf("sysinfo: %w", err)
	}
	unit := int64(info.Unit)
	totalKiB := int64(info.Totalram) * unit / 1024
	freeKiB := (int64(info.Freeram) + int64(info.Bufferram)) * unit / 1024
	rec.MemTotalKiB = totalKiB
	rec.MemUsedKiB = totalKiB - freeKiB
	if totalKiB > 0 {
		rec.MemPct = round1(float64(rec.MemUsedKiB) / float64(totalKiB) * 100)
	}
	rec.SwapUsedKiB = (int64(info.Totalswap) - int64(info.Freeswap)) * unit / 1024
	rec.Load1 = round2(float64(info.Loads[0]) / loadScale)
	rec.Load5 = round2(float64(info.Loads[1]) / loadScale)
	rec.Load15 = round2(float64(info.Loads[2]) / loadScale)

	rec.Procs = countMatchingProcs(s.match)

	return rec, nil
}

// loadScale converts the kernel's fixed-point load averages.
const loadScale = 1 << 16

// Float fields are quantized to the log line precision so a record read
// back from the log equals the record returned by Stop.
func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }

// MemUsedKiB reports the system memory currently in use. The orchestrator
// records it before and after a run to bracket the sampler's view.
func MemUsedKiB() (int64, error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0, fmt.Errorf("sysinfo: %w", err)
	}
	unit := int64(info.Unit)
	used := int64(info.Totalram) - int64(info.Freeram) - int64(info.Bufferram)
	return used * unit / 1024, nil
}

func (s *Sampler) append(rec api.SamplerRecord) {
	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()

	if _, err := fmt.Fprintln(s.logFile, FormatRecord(rec)); err != nil {
		slog.Warn("failed to append sampler record", "error", err)
	}
}
