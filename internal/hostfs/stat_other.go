//go:build !linux

package hostfs

import (
	"os"

	"github.com/objectfs/jailstore/pkg/types"
)

// statTimes falls back to the portable modification time.
func statTimes(_ string, info os.FileInfo) types.Stats {
	return types.Stats{Mtime: types.TimePtr(info.ModTime())}
}
