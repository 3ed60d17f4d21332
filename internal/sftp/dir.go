package sftp

import "os"

// dirIterator is the restartable directory iterator backing OPENDIR/READDIR.
// Its position is simply an index into a one-shot listing taken at
// OPENDIR time, which makes "restartable" trivial: the position cookie is
// just that index, and rewinding it is an assignment. Go's
// os.File.ReadDir has no native save/restore of position, so the whole
// listing is buffered up front instead of one entry at a time.
type dirIterator struct {
	f       *os.File
	entries []os.DirEntry
	pos     int
}

// openDirIterator opens path read-only and snapshots its entries.
func openDirIterator(path string) (*dirIterator, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	entries, err := f.ReadDir(-1)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &dirIterator{f: f, entries: entries}, nil
}

func (d *dirIterator) close() error {
	return d.f.Close()
}

// Pos returns the iterator's current restart cookie.
func (d *dirIterator) Pos() int { return d.pos }

// SetPos rewinds (or, in principle, fast-forwards) the iterator to a
// cookie previously returned by Pos.
func (d *dirIterator) SetPos(p int) { d.pos = p }

// Next returns the next entry whose stat succeeds. Each entry is stat-ed
// through os.DirEntry.Info, which lstat-s the directory's path joined with
// the entry name: the stat is not relative to the open directory fd, and
// symlink entries are not followed. Entries whose stat fails are silently
// skipped and do not count as "next". ok is false once the directory is
// exhausted.
func (d *dirIterator) Next() (name string, attrs Attrs, ok bool) {
	for d.pos < len(d.entries) {
		e := d.entries[d.pos]
		d.pos++
		info, err := e.Info()
		if err != nil {
			continue
		}
		return e.Name(), attrsFromFileInfo(info), true
	}
	return "", Attrs{}, false
}
