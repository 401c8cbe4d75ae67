package sysmon

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/toolbench/toolbench/api"
)

const procStatPath = "/proc/stat"

type cpuTimes struct {
	busy  uint64
	total uint64
}

func readCPUTimes(path string) (cpuTimes, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cpuTimes{}, err
	}
	line, _, _ := strings.Cut(string(data), "\n")
	return parseCPULine(line)
}

// parseCPULine parses the aggregate "cpu" line of /proc/stat:
// user nice system idle iowait irq softirq steal [guest guestnice].
func parseCPULine(line string) (cpuTimes, error) {
	fields := strings.Fields(line)
	if len(fields) < 8 || fields[0] != "cpu" {
		return cpuTimes{}, fmt.Errorf("unexpected cpu line: %q", line)
	}
	var t cpuTimes
	for i, f := range fields[1:] {
		v, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			return cpuTimes{}, fmt.Errorf("cpu field %d: %w", i, err)
		}
		t.total += v
		// idle and iowait are fields 4 and 5 of the line
		if i != 3 && i != 4 {
			t.busy += v
		}
	}
	return t, nil
}

// cpuBusyPct returns the busy share between two counter snapshots in
// percent of one core's capacity.
func cpuBusyPct(prev, cur cpuTimes) float64 {
	dTotal := cur.total - prev.total
	if cur.total <= prev.total {
		return 0
	}
	dBusy := cur.busy - prev.busy
	return float64(dBusy) / float64(dTotal) * 100
}

// countMatchingProcs counts live processes whose command line contains any
// of the given names. Processes that vanish mid-scan are simply skipped.
func countMatchingProcs(names []string) int {
	if len(names) == 0 {
		return 0
	}
	paths, err := filepath.Glob("/proc/[0-9]*/cmdline")
	if err != nil {
		return 0
	}
	n := 0
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil || len(data) == 0 {
			continue
		}
		cmdline := strings.ReplaceAll(string(data), "\x00", " ")
		for _, name := range names {
			if strings.Contains(cmdline, name) {
				n++
				break
			}
		}
	}
	return n
}

// FormatRecord renders one record as the whitespace-separated log line
// written by the sampler. Together with ParseRecord it is lossless for
// records the sampler produces: sample() quantizes every float field to the
// precision written here.
func FormatRecord(r api.SamplerRecord) string {
	return fmt.Sprintf("%d %.1f %d %d %.1f %d %.2f %.2f %.2f %d",
		r.UnixMillis, r.CPUPct,
		r.MemUsedKiB, r.MemTotalKiB, r.MemPct, r.SwapUsedKiB,
		r.Load1, r.Load5, r.Load15, r.Procs)
}

// ParseRecord is the inverse of FormatRecord.
func ParseRecord(line string) (api.SamplerRecord, error) {
	var r api.SamplerRecord
	_, err := fmt.Sscanf(line, "%d %f %d %d %f %d %f %f %f %d",
		&r.UnixMillis, &r.CPUPct,
		&r.MemUsedKiB, &r.MemTotalKiB, &r.MemPct, &r.SwapUsedKiB,
		&r.Load1, &r.Load5, &r.Load15, &r.Procs)
	if err != nil {
		return r, fmt.Errorf("parse sampler record %q: %w", line, err)
	}
	return r, nil
}

// ReadLog parses a sampler log back into records, skipping blank lines.
func ReadLog(path string) ([]api.SamplerRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var recs []api.SamplerRecord
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		r, err := ParseRecord(line)
		if err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	return recs, sc.Err()
}
