package sftp

import (
	"os"
	"time"

	"github.com/jevinskie/nih-sftp-server/binp"
)

// Attribute flag bits, draft-ietf-secsh-filexfer-02 section 5.
const (
	attrSize        = 0x00000001
	attrUIDGID      = 0x00000002
	attrPermissions = 0x00000004
	attrACModTime   = 0x00000008
	attrExtended    = 0x80000000
)

// Attrs is the decoded form of an SFTP ATTRS structure: a flags bitmap plus
// the four optional field groups it may carry. Fields whose flag bit is
// unset are zero.
type Attrs struct {
	Flags       uint32
	Size        uint64
	UID, GID    uint32
	Permissions uint32
	ATime       uint32
	MTime       uint32
}

// GetAttrs decodes an ATTRS structure from r: the flags word, then the
// grouped fields present per the flags, in the fixed wire order. If the
// extended bit is set, the extension (type, data) string pairs are read
// and discarded -- this server emits no extensions and retains none.
func GetAttrs(r *binp.Reader) Attrs {
	var a Attrs
	a.Flags = r.GetU32()
	if a.Flags&attrSize != 0 {
		a.Size = r.GetU64()
	}
	if a.Flags&attrUIDGID != 0 {
		a.UID = r.GetU32()
		a.GID = r.GetU32()
	}
	if a.Flags&attrPermissions != 0 {
		a.Permissions = r.GetU32()
	}
	if a.Flags&attrACModTime != 0 {
		a.ATime = r.GetU32()
		a.MTime = r.GetU32()
	}
	if a.Flags&attrExtended != 0 {
		count := r.GetU32()
		for i := uint32(0); i < count; i++ {
			r.GetCString()
			r.GetCString()
		}
	}
	return a
}

// PutAttrs encodes a into w, writing only the grouped fields a.Flags
// selects, in the same fixed order GetAttrs reads them. It never writes
// the extensions block.
func PutAttrs(w *binp.Writer, a Attrs) {
	w.PutU32(a.Flags)
	if a.Flags&attrSize != 0 {
		w.PutU64(a.Size)
	}
	if a.Flags&attrUIDGID != 0 {
		w.PutU32(a.UID).PutU32(a.GID)
	}
	if a.Flags&attrPermissions != 0 {
		w.PutU32(a.Permissions)
	}
	if a.Flags&attrACModTime != 0 {
		w.PutU32(a.ATime).PutU32(a.MTime)
	}
}

// maxAttrsBytes bounds the worst-case on-wire size of an ATTRS structure
// with every group present: flags(4) + size(8) + uid+gid(8) + perm(4) +
// atime+mtime(8) = 32.
const maxAttrsBytes = 32

// attrsToTimeval converts the wire (atime, mtime) seconds pair into a
// pair of Unix seconds suitable for a utimes-style host call.
func attrsToTimeval(a Attrs) (atime, mtime int64) {
	return int64(a.ATime), int64(a.MTime)
}

// attrsFromFileInfo builds the full-flags Attrs a LSTAT/STAT/FSTAT reply
// carries: SIZE | UIDGID | PERMISSIONS | ACMODTIME.
func attrsFromFileInfo(fi os.FileInfo) Attrs {
	uid, gid := fileOwner(fi)
	mtime := fi.ModTime()
	return Attrs{
		Flags:       attrSize | attrUIDGID | attrPermissions | attrACModTime,
		Size:        uint64(fi.Size()),
		UID:         uid,
		GID:         gid,
		Permissions: fileModeToSFTP(fi.Mode()),
		ATime:       uint32(mtime.Unix()), // atime is not tracked separately by os.FileInfo
		MTime:       uint32(mtime.Unix()),
	}
}

// fileModeToSFTP packs a Go os.FileMode's permission bits and type bit into
// the POSIX st_mode-shaped uint32 the protocol expects.
func fileModeToSFTP(m os.FileMode) uint32 {
	raw := uint32(m.Perm())
	switch {
	case m.IsDir():
		raw |= 0040000
	case m&os.ModeSymlink != 0:
		raw |= 0120000
	default:
		raw |= 0100000
	}
	return raw
}

// sftpModeToFileMode unpacks the permission bits of an incoming
// ATTRS.permissions field; SFTP's type bits are ignored on the way in
// since the type of an existing path is never client-settable.
func sftpModeToFileMode(raw uint32) os.FileMode {
	return os.FileMode(raw & 0777)
}

func unixSecToTime(sec uint32) time.Time {
	return time.Unix(int64(sec), 0)
}
