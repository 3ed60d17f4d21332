package sftp

import (
	"os"
	"syscall"
)

// fileOwner extracts the POSIX owning uid/gid from a os.FileInfo obtained
// via Lstat/Stat/Fstat on a Unix host. Returns zero values if the
// underlying Sys() value isn't a *syscall.Stat_t (e.g. on platforms this
// server was never meant to run on).
func fileOwner(fi os.FileInfo) (uid, gid uint32) {
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, 0
	}
	return st.Uid, st.Gid
}
