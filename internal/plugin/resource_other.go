//go:build !unix

package plugin

import "fmt"

// readRSSBytes has no portable equivalent of /proc/<pid>/status
// outside Unix; resource polling is simply unavailable here, the same
// way configureProcessGroup degrades to a no-op.
func readRSSBytes(pid int) (int64, error) {
	return 0, fmt.Errorf("resource polling unsupported on this platform")
}
