// Package memstat reports the resident memory of the running process for the
// record-count milestone lines.
package memstat

import (
	"os"

	"github.com/shirou/gopsutil/v3/process"
)

// Probe returns the resident set size in bytes.
type Probe func() uint64

// ResidentBytes returns the RSS of the current process, or 0 when the
// platform does not expose it.
func ResidentBytes() uint64 {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0
	}
	mi, err := p.MemoryInfo()
	if err != nil || mi == nil {
		return 0
	}
	return mi.RSS
}
