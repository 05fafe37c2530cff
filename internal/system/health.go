// Package system reports on the health of the directories the scheduler
// plays from.
package system

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"player-scheduler/internal/source"
)

// Lister enumerates the eligible items of a source.
type Lister interface {
	List(src *source.Source) ([]source.Item, error)
}

// Disk is the filesystem a source directory lives on.
type Disk struct {
	Mount     string  `json:"mount"`
	UsedPct   float64 `json:"used_pct"`
	FreeBytes uint64  `json:"free_bytes"`
}

// SourceReport is the state of one source directory.
type SourceReport struct {
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
	Files  int    `json:"files"`
	Disk   *Disk  `json:"disk,omitempty"`
	Err    string `json:"error,omitempty"`
}

// OK reports whether the source can contribute to a playlist.
func (r SourceReport) OK() bool {
	return r.Exists && r.Err == ""
}

// CheckSources reports on every source: whether its directory exists, how
// many eligible files it currently holds and which filesystem it is on.
func CheckSources(sources []*source.Source, lister Lister) []SourceReport {
	reports := make([]SourceReport, 0, len(sources))
	var dirs []int
	for _, src := range sources {
		r := checkSource(src, lister)
		if r.Exists {
			dirs = append(dirs, len(reports))
		}
		reports = append(reports, r)
	}
	if len(dirs) == 0 {
		return reports
	}

	paths := make([]string, len(dirs))
	for i, idx := range dirs {
		paths[i] = reports[idx].Path
	}
	// Disk figures are informational; df may be missing.
	disks, err := DiskUsage(paths...)
	if err != nil {
		return reports
	}
	for i, idx := range dirs {
		reports[idx].Disk = &disks[i]
	}
	return reports
}

func checkSource(src *source.Source, lister Lister) SourceReport {
	r := SourceReport{Path: src.Path}

	info, err := os.Stat(src.Path)
	if err != nil {
		r.Err = err.Error()
		return r
	}
	if !info.IsDir() {
		r.Err = "not a directory"
		return r
	}
	r.Exists = true

	items, err := lister.List(src)
	if err != nil {
		r.Err = err.Error()
		return r
	}
	r.Files = len(items)
	return r
}

// DiskUsage runs df once for all paths and returns their filesystems in
// the same order.
func DiskUsage(paths ...string) ([]Disk, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	args := append([]string{"--output=pcent,avail,target", "-B1"}, paths...)
	out, err := exec.Command("df", args...).Output()
	if err != nil {
		return nil, fmt.Errorf("df: %w", err)
	}
	return parseDF(string(out), len(paths))
}

// parseDF reads "Use% Avail Mounted on" rows. The mount point comes last
// since it may contain spaces.
func parseDF(out string, want int) ([]Disk, error) {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines)-1 != want {
		return nil, fmt.Errorf("df: got %d rows for %d paths", len(lines)-1, want)
	}

	disks := make([]Disk, 0, want)
	for _, line := range lines[1:] {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return nil, fmt.Errorf("df: malformed row %q", line)
		}
		pct, err := strconv.ParseFloat(strings.TrimSuffix(fields[0], "%"), 64)
		if err != nil {
			return nil, fmt.Errorf("df: used %q: %w", fields[0], err)
		}
		free, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("df: avail %q: %w", fields[1], err)
		}
		disks = append(disks, Disk{
			Mount:     strings.Join(fields[2:], " "),
			UsedPct:   pct,
			FreeBytes: free,
		})
	}
	return disks, nil
}
