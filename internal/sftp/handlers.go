package sftp

import (
	"io"
	"os"

	"github.com/jevinskie/nih-sftp-server/binp"
	"github.com/pkg/errors"
)

// clientVersion is the minimum INIT version this server accepts; a lower
// version is a fatal protocol violation.
const clientVersion = 3

// errInvalidHandle and errHandleTableFull are reported (not fatal) errors
// that don't come from a host errno, so they bypass errnoToStatus entirely
// and map straight to a status code.
var (
	errInvalidHandle   = errors.New("invalid handle")
	errHandleTableFull = errors.New("handle table full")
)

// dispatch reads one opcode byte from r and handles it, writing a reply
// (if any) into w. It returns a non-nil error only for fatal conditions;
// every filesystem/protocol error a handler encounters is reported back
// to the client as a STATUS reply instead.
func (e *Engine) dispatch(r *binp.Reader, w *binp.Writer) error {
	op := r.GetByte()

	if !e.initialized {
		if op != opInit {
			return errors.Errorf("fatal: first packet was opcode %d, not INIT", op)
		}
		if err := e.handleInit(r, w); err != nil {
			return err
		}
		e.initialized = true
		return nil
	}

	if op == opInit {
		return errors.New("fatal: duplicate INIT after session already initialized")
	}

	switch op {
	case opOpen:
		e.handleOpen(r, w)
	case opClose:
		e.handleClose(r, w)
	case opRead:
		e.handleRead(r, w)
	case opWrite:
		e.handleWrite(r, w)
	case opLstat:
		e.handleStat(r, w, true)
	case opStat:
		e.handleStat(r, w, false)
	case opFstat:
		e.handleFstat(r, w)
	case opSetstat:
		e.handleSetstat(r, w)
	case opFsetstat:
		e.handleFsetstat(r, w)
	case opOpendir:
		e.handleOpendir(r, w)
	case opReaddir:
		e.handleReaddir(r, w)
	case opRemove:
		e.handleRemove(r, w)
	case opMkdir:
		e.handleMkdir(r, w)
	case opRmdir:
		e.handleRmdir(r, w)
	case opRealpath:
		e.handleRealpath(r, w)
	case opRename:
		e.handleRename(r, w)
	case opReadlink:
		e.handleReadlink(r, w)
	case opSymlink:
		e.handleSymlink(r, w)
	default:
		id := r.GetU32()
		e.debugf("unsupported opcode %d id=%d\n", op, id)
		writeStatusCode(w, id, statusOpUnsupported)
	}
	return nil
}

func (e *Engine) handleInit(r *binp.Reader, w *binp.Writer) error {
	version := r.GetU32()
	if version < clientVersion {
		return errors.Errorf("fatal: client requested SFTP version %d, minimum supported is %d", version, clientVersion)
	}
	e.debugf("INIT version=%d\n", version)
	w.PutByte(opVersion).PutU32(clientVersion)
	return nil
}

func (e *Engine) handleOpen(r *binp.Reader, w *binp.Writer) {
	id := r.GetU32()
	path := r.GetCString()
	pflags := r.GetU32()
	a := GetAttrs(r)
	e.debugf("OPEN id=%d path=%s pflags=%x\n", id, path, pflags)

	flags := openFlagsFromPflags(pflags)
	mode := openModeFromAttrs(a)
	f, err := os.OpenFile(path, flags, mode)
	if err != nil {
		writeStatus(w, id, err)
		return
	}
	handle := e.handles.allocFile(f)
	if handle == "" {
		_ = f.Close()
		writeStatus(w, id, errHandleTableFull)
		return
	}
	writeHandle(w, id, handle)
}

func (e *Engine) handleClose(r *binp.Reader, w *binp.Writer) {
	id := r.GetU32()
	handle := r.GetCString()
	e.debugf("CLOSE id=%d handle=%s\n", id, handle)
	found, err := e.handles.release(handle)
	if !found {
		writeStatus(w, id, errInvalidHandle)
		return
	}
	writeStatus(w, id, err)
}

func (e *Engine) handleRead(r *binp.Reader, w *binp.Writer) {
	id := r.GetU32()
	handle := r.GetCString()
	offset := r.GetU64()
	length := r.GetU32()
	e.debugf("READ id=%d handle=%s offset=%d length=%d\n", id, handle, offset, length)

	f := e.handles.file(handle)
	if f == nil {
		writeStatus(w, id, errInvalidHandle)
		return
	}

	// Cap length so that 1 (opcode) + 4 (id) + 4 (data length) + length
	// fits the remaining output space.
	const dataHeader = 1 + 4 + 4
	avail := w.Remaining() - dataHeader
	if avail < 0 {
		avail = 0
	}
	if int(length) > avail {
		length = uint32(avail)
	}

	saved := w.SaveCursor()
	w.PutByte(opData).PutU32(id)
	w.PutU32(0) // placeholder data-length, rewritten below
	dst := w.Reserve(int(length))
	n, err := f.ReadAt(dst, int64(offset))
	if n == 0 {
		w.Restore(saved)
		if err != nil && err != io.EOF {
			writeStatus(w, id, err)
		} else {
			writeStatusCode(w, id, statusEOF)
		}
		return
	}
	// data[0:n] is already in place in the output buffer -- ReadAt wrote
	// directly into it. Rewind and rewrite just the header with the true
	// byte count, then re-reserve only the bytes actually filled.
	w.Restore(saved)
	w.PutByte(opData).PutU32(id).PutU32(uint32(n))
	w.Reserve(n)
}

func (e *Engine) handleWrite(r *binp.Reader, w *binp.Writer) {
	id := r.GetU32()
	handle := r.GetCString()
	offset := r.GetU64()
	length := r.GetU32()
	data := r.GetData(int(length))
	e.debugf("WRITE id=%d handle=%s offset=%d length=%d\n", id, handle, offset, length)

	f := e.handles.file(handle)
	if f == nil {
		writeStatus(w, id, errInvalidHandle)
		return
	}
	n, err := f.WriteAt(data, int64(offset))
	if err == nil && n != len(data) {
		// Short writes are reported as failure, not retried.
		err = errors.New("short write")
	}
	writeStatus(w, id, err)
}

func (e *Engine) handleStat(r *binp.Reader, w *binp.Writer, lstat bool) {
	id := r.GetU32()
	path := r.GetCString()
	e.debugf("STAT/LSTAT id=%d path=%s lstat=%v\n", id, path, lstat)
	a, err := statPath(path, lstat)
	if err != nil {
		writeStatus(w, id, err)
		return
	}
	writeAttrsReply(w, id, a)
}

func (e *Engine) handleFstat(r *binp.Reader, w *binp.Writer) {
	id := r.GetU32()
	handle := r.GetCString()
	e.debugf("FSTAT id=%d handle=%s\n", id, handle)
	f := e.handles.file(handle)
	if f == nil {
		writeStatus(w, id, errInvalidHandle)
		return
	}
	fi, err := f.Stat()
	if err != nil {
		writeStatus(w, id, err)
		return
	}
	writeAttrsReply(w, id, attrsFromFileInfo(fi))
}

func (e *Engine) handleSetstat(r *binp.Reader, w *binp.Writer) {
	id := r.GetU32()
	path := r.GetCString()
	a := GetAttrs(r)
	e.debugf("SETSTAT id=%d path=%s\n", id, path)
	writeStatus(w, id, applySetstatPath(path, a))
}

func (e *Engine) handleFsetstat(r *binp.Reader, w *binp.Writer) {
	id := r.GetU32()
	handle := r.GetCString()
	a := GetAttrs(r)
	e.debugf("FSETSTAT id=%d handle=%s\n", id, handle)
	f := e.handles.file(handle)
	if f == nil {
		writeStatus(w, id, errInvalidHandle)
		return
	}
	writeStatus(w, id, applySetstatFile(f, a))
}

func (e *Engine) handleOpendir(r *binp.Reader, w *binp.Writer) {
	id := r.GetU32()
	path := r.GetCString()
	e.debugf("OPENDIR id=%d path=%s\n", id, path)
	d, err := openDirIterator(path)
	if err != nil {
		writeStatus(w, id, err)
		return
	}
	handle := e.handles.allocDir(d)
	if handle == "" {
		_ = d.close()
		writeStatus(w, id, errHandleTableFull)
		return
	}
	writeHandle(w, id, handle)
}

// handleReaddir packs as many directory entries as fit in the reply
// buffer, rewinding the iterator's position by one entry when a fetched
// entry doesn't fit so the next READDIR call picks up from there.
func (e *Engine) handleReaddir(r *binp.Reader, w *binp.Writer) {
	id := r.GetU32()
	handle := r.GetCString()
	e.debugf("READDIR id=%d handle=%s\n", id, handle)

	d := e.handles.dir(handle)
	if d == nil {
		writeStatus(w, id, errInvalidHandle)
		return
	}

	s1 := w.SaveCursor()
	w.PutByte(opName).PutU32(id)
	countPos := w.Pos()
	w.PutU32(0)

	count := 0
	for {
		pos := d.Pos()
		name, a, ok := d.Next()
		if !ok {
			break
		}
		bound := (4+len(name))*2 + maxAttrsBytes
		if w.Remaining() >= bound {
			w.PutString(name)
			w.PutString(name) // longname == filename; no ls -l rendering
			putAttrsFull(w, a)
			count++
			continue
		}
		if count > 0 {
			d.SetPos(pos)
			break
		}
		// The entry will never fit on its own; skip it and keep going.
	}

	if count > 0 {
		w.PutU32At(countPos, uint32(count))
		return
	}
	w.Restore(s1)
	writeStatusCode(w, id, statusEOF)
}

func (e *Engine) handleRemove(r *binp.Reader, w *binp.Writer) {
	id := r.GetU32()
	path := r.GetCString()
	e.debugf("REMOVE id=%d path=%s\n", id, path)
	writeStatus(w, id, os.Remove(path))
}

func (e *Engine) handleMkdir(r *binp.Reader, w *binp.Writer) {
	id := r.GetU32()
	path := r.GetCString()
	a := GetAttrs(r)
	e.debugf("MKDIR id=%d path=%s\n", id, path)
	mode := os.FileMode(0777)
	if a.Flags&attrPermissions != 0 {
		mode = sftpModeToFileMode(a.Permissions)
	}
	writeStatus(w, id, os.Mkdir(path, mode))
}

func (e *Engine) handleRmdir(r *binp.Reader, w *binp.Writer) {
	id := r.GetU32()
	path := r.GetCString()
	e.debugf("RMDIR id=%d path=%s\n", id, path)
	writeStatus(w, id, os.Remove(path))
}

func (e *Engine) handleRealpath(r *binp.Reader, w *binp.Writer) {
	id := r.GetU32()
	path := r.GetCString()
	e.debugf("REALPATH id=%d path=%s\n", id, path)
	resolved, err := realPath(path)
	if err != nil {
		writeStatus(w, id, err)
		return
	}
	writeNameOnly(w, id, resolved)
}

func (e *Engine) handleRename(r *binp.Reader, w *binp.Writer) {
	id := r.GetU32()
	oldName := r.GetCString()
	newName := r.GetCString()
	// The base v3 protocol defines no rename flags field, so none is read.
	e.debugf("RENAME id=%d old=%s new=%s\n", id, oldName, newName)
	writeStatus(w, id, os.Rename(oldName, newName))
}

// handleReadlink writes the NAME reply skeleton first, then reads the
// symlink target with os.Readlink and copies it into the output buffer at
// the filename slot, written a second time as the longname, followed by
// zero ATTRS flags.
func (e *Engine) handleReadlink(r *binp.Reader, w *binp.Writer) {
	id := r.GetU32()
	path := r.GetCString()
	e.debugf("READLINK id=%d path=%s\n", id, path)

	saved := w.SaveCursor()
	w.PutByte(opName).PutU32(id).PutU32(1)

	target, err := os.Readlink(path)
	if err != nil {
		w.Restore(saved)
		writeStatus(w, id, err)
		return
	}
	// Both copies plus 4 bytes of dummy ATTRS flags must fit; this bounds
	// the available space per copy.
	avail := (w.Remaining()-maxAttrsBytes)/2 - 4
	if len(target) > avail {
		w.Restore(saved)
		writeStatus(w, id, errors.New("symlink target too long for reply"))
		return
	}
	w.PutString(target)
	w.PutString(target)
	w.PutU32(0) // dummy zero-valued ATTRS: flags = 0, no groups follow
}

func (e *Engine) handleSymlink(r *binp.Reader, w *binp.Writer) {
	id := r.GetU32()
	// Wire order is (link_path, target_path); the host call takes
	// (target, link). The swap is intentional, not a bug.
	linkPath := r.GetCString()
	targetPath := r.GetCString()
	e.debugf("SYMLINK id=%d link=%s target=%s\n", id, linkPath, targetPath)
	writeStatus(w, id, os.Symlink(targetPath, linkPath))
}

// --- reply writers ---

func writeStatus(w *binp.Writer, id uint32, err error) {
	writeStatusCode(w, id, statusForError(err))
}

func writeStatusCode(w *binp.Writer, id uint32, code uint32) {
	w.PutByte(opStatus).PutU32(id).PutU32(code).PutString(statusMessage(code)).PutString("en")
}

func writeHandle(w *binp.Writer, id uint32, handle string) {
	w.PutByte(opHandle).PutU32(id).PutString(handle)
}

func writeAttrsReply(w *binp.Writer, id uint32, a Attrs) {
	w.PutByte(opAttrs).PutU32(id)
	PutAttrs(w, a)
}

func putAttrsFull(w *binp.Writer, a Attrs) {
	PutAttrs(w, a)
}

// writeNameOnly replies NAME with exactly one entry whose filename and
// longname are both path and whose ATTRS are all-zero, used by REALPATH.
func writeNameOnly(w *binp.Writer, id uint32, path string) {
	w.PutByte(opName).PutU32(id).PutU32(1)
	w.PutString(path)
	w.PutString(path)
	w.PutU32(0)
}
