//go:build linux || darwin

package reactor

import "golang.org/x/sys/unix"

// defaultFDTableSize is used when RLIMIT_NOFILE can't be read.
const defaultFDTableSize = 4096

// maxFDTableSize bounds the fd table regardless of what RLIMIT_NOFILE
// reports, so an "unlimited" soft limit can't force a multi-gigabyte
// allocation per worker.
const maxFDTableSize = 1 << 20

// fdTableSize sizes a worker's direct-indexed fd table from the process's
// actual open-file limit. Every fd number the kernel can ever hand this
// process is bounded by RLIMIT_NOFILE, so the table only needs to be sized
// once, at Init, rather than grown on demand as connections arrive.
func fdTableSize() int {
	var rl unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rl); err != nil {
		return defaultFDTableSize
	}
	n := rl.Cur
	if n == 0 || n > maxFDTableSize {
		return maxFDTableSize
	}
	return int(n)
}
