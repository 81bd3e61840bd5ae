package registry

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/vinayprograms/pacekit/errors"
)

// Entry records one process's last-known liveness for one target site.
type Entry struct {
	// PID is the process identifier allocated through the shared registry.
	// It is not the OS pid.
	PID int

	// Time is when the owning process last refreshed this entry.
	Time time.Time

	// Site is the opaque key of the throttled resource. It contains no
	// whitespace.
	Site string
}

// Store reads and writes the shared registry of process entries.
type Store interface {
	// Read returns all well-formed entries. Malformed lines are skipped
	// silently; only failure to access the registry at all is an error.
	Read() ([]Entry, error)

	// Write fully replaces the registry with the given entries, sorted by
	// (pid, site) for deterministic output.
	Write(entries []Entry) error
}

// ParseEntry parses one registry line of the form "pid time site".
// Fields are whitespace-separated; the timestamp may carry fractional
// seconds, which are truncated. Lines that do not parse into exactly this
// shape are rejected with a MALFORMED_ENTRY error.
func ParseEntry(line string) (Entry, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return Entry{}, errors.Newf(errors.ErrCodeMalformedEntry,
			"expected 3 fields, got %d", len(fields))
	}

	pid, err := strconv.Atoi(fields[0])
	if err != nil {
		return Entry{}, errors.Newf(errors.ErrCodeMalformedEntry,
			"bad pid %q", fields[0])
	}

	ts, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return Entry{}, errors.Newf(errors.ErrCodeMalformedEntry,
			"bad timestamp %q", fields[1])
	}

	return Entry{
		PID:  pid,
		Time: time.Unix(int64(ts), 0),
		Site: fields[2],
	}, nil
}

// FormatEntry renders an entry as one registry line. Timestamps are written
// as integer Unix seconds.
func FormatEntry(e Entry) string {
	return fmt.Sprintf("%d %d %s\n", e.PID, e.Time.Unix(), e.Site)
}

// SortEntries orders entries by (pid, site), the registry's canonical order.
func SortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].PID != entries[j].PID {
			return entries[i].PID < entries[j].PID
		}
		return entries[i].Site < entries[j].Site
	})
}
