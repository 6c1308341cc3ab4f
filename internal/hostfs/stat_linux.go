//go:build linux

package hostfs

import (
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/objectfs/jailstore/pkg/types"
)

const statxMask = unix.STATX_ATIME | unix.STATX_MTIME | unix.STATX_CTIME | unix.STATX_BTIME

// statTimes reads all four timestamps with statx. Btime is left unset on
// filesystems that do not record it.
func statTimes(p string, info os.FileInfo) types.Stats {
	stats := types.Stats{Mtime: types.TimePtr(info.ModTime())}

	var stx unix.Statx_t
	if err := unix.Statx(unix.AT_FDCWD, p, unix.AT_STATX_SYNC_AS_STAT, statxMask, &stx); err != nil {
		return stats
	}

	if stx.Mask&unix.STATX_ATIME != 0 {
		stats.Atime = statxTime(stx.Atime)
	}
	if stx.Mask&unix.STATX_MTIME != 0 {
		stats.Mtime = statxTime(stx.Mtime)
	}
	if stx.Mask&unix.STATX_CTIME != 0 {
		stats.Ctime = statxTime(stx.Ctime)
	}
	if stx.Mask&unix.STATX_BTIME != 0 {
		stats.Btime = statxTime(stx.Btime)
	}
	return stats
}

func statxTime(ts unix.StatxTimestamp) *time.Time {
	return types.TimePtr(time.Unix(ts.Sec, int64(ts.Nsec)))
}
