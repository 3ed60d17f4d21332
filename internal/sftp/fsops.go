package sftp

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// openFlagsFromPflags maps SFTP OPEN pflags to the os.OpenFile flag bits.
// Missing READ and WRITE together yields flags == 0 (deliberately no
// O_RDONLY either); the host call may then succeed or fail per its own
// rules.
func openFlagsFromPflags(pflags uint32) int {
	var flags int
	switch {
	case pflags&pflagRead != 0 && pflags&pflagWrite != 0:
		flags = os.O_RDWR
	case pflags&pflagRead != 0:
		flags = os.O_RDONLY
	case pflags&pflagWrite != 0:
		flags = os.O_WRONLY
	}
	if pflags&pflagCreat != 0 {
		flags |= os.O_CREATE
	}
	if pflags&pflagTrunc != 0 {
		flags |= os.O_TRUNC
	}
	if pflags&pflagExcl != 0 {
		flags |= os.O_EXCL
	}
	if pflags&pflagAppend != 0 {
		flags |= os.O_APPEND
	}
	return flags
}

// openModeFromAttrs is the permission bits a newly created file gets: the
// client-supplied permissions if ATTRS carried them, else the protocol's
// conventional default of 0666.
func openModeFromAttrs(a Attrs) os.FileMode {
	if a.Flags&attrPermissions != 0 {
		return os.FileMode(a.Permissions & 0777)
	}
	return 0666
}

// applySetstatPath applies, in permissions/times/ownership order, only the
// attribute groups whose flag is set, stopping at the first error.
// chmod/chtimes/chown take a path; applySetstatFile below is the
// open-file counterpart used for FSETSTAT.
func applySetstatPath(path string, a Attrs) error {
	if a.Flags&attrPermissions != 0 {
		if err := os.Chmod(path, sftpModeToFileMode(a.Permissions)); err != nil {
			return err
		}
	}
	if a.Flags&attrACModTime != 0 {
		if err := os.Chtimes(path, unixSecToTime(a.ATime), unixSecToTime(a.MTime)); err != nil {
			return err
		}
	}
	if a.Flags&attrUIDGID != 0 {
		if err := os.Chown(path, int(a.UID), int(a.GID)); err != nil {
			return err
		}
	}
	return nil
}

// applySetstatFile is FSETSTAT's fd-relative counterpart. *os.File exposes
// Chmod and Chown directly; it has no Futimes, so that step goes through
// golang.org/x/sys/unix.Futimes against the raw fd.
func applySetstatFile(f *os.File, a Attrs) error {
	if a.Flags&attrPermissions != 0 {
		if err := f.Chmod(sftpModeToFileMode(a.Permissions)); err != nil {
			return err
		}
	}
	if a.Flags&attrACModTime != 0 {
		at, mt := attrsToTimeval(a)
		tv := []unix.Timeval{
			{Sec: at, Usec: 0},
			{Sec: mt, Usec: 0},
		}
		if err := unix.Futimes(int(f.Fd()), tv); err != nil {
			return err
		}
	}
	if a.Flags&attrUIDGID != 0 {
		if err := f.Chown(int(a.UID), int(a.GID)); err != nil {
			return err
		}
	}
	return nil
}

// statPath stats path, following symlinks unless lstat is true, and
// returns the full-flags Attrs an LSTAT/STAT/FSTAT reply carries.
func statPath(path string, lstat bool) (Attrs, error) {
	var fi os.FileInfo
	var err error
	if lstat {
		fi, err = os.Lstat(path)
	} else {
		fi, err = os.Stat(path)
	}
	if err != nil {
		return Attrs{}, err
	}
	return attrsFromFileInfo(fi), nil
}

// realPath canonicalizes path the way realpath(3)'s NULL-second-argument
// form does: resolve relative to the current working directory, then
// resolve every symlink component, requiring the final target to exist.
// See SPEC_FULL.md's note on why this is a standard-library-only
// component.
func realPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}
