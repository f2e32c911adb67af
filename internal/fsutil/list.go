package fsutil

import (
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"time"
)

// Entry is one listable file directly under the shared root.
type Entry struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// ListFiles returns the eligible files directly under rootAbs, in name order.
// Eligible means a regular file whose name passes CheckName, so every listed
// name can also be downloaded.
// Directories and special files are skipped, and so are symlinks unless
// followSymlinks is set and the link resolves to a regular file inside
// rootAbs. On any error reading rootAbs the result is empty, never nil.
func ListFiles(rootAbs string, followSymlinks bool) []Entry {
	ents, err := os.ReadDir(rootAbs)
	if err != nil {
		log.Printf("list: %v", err)
		return []Entry{}
	}
	out := make([]Entry, 0, len(ents))
	for _, e := range ents {
		name := e.Name()
		if CheckName(name) != nil {
			continue
		}
		t := e.Type()
		if !t.IsRegular() && t&fs.ModeSymlink == 0 {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		info, ok := eligible(rootAbs, filepath.Join(rootAbs, name), info, followSymlinks)
		if !ok {
			continue
		}
		out = append(out, Entry{Name: name, Size: info.Size(), ModTime: info.ModTime()})
	}
	return out
}

// Stat applies the listing rules to a single name. Invalid names return
// ErrInvalidName; anything that exists but is not listable returns
// fs.ErrNotExist.
func Stat(rootAbs, name string, followSymlinks bool) (Entry, error) {
	abs, err := JoinWithinRoot(rootAbs, name)
	if err != nil {
		return Entry{}, err
	}
	lst, err := os.Lstat(abs)
	if err != nil {
		return Entry{}, err
	}
	info, ok := eligible(rootAbs, abs, lst, followSymlinks)
	if !ok {
		return Entry{}, fs.ErrNotExist
	}
	return Entry{Name: name, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// Open opens a listable file for reading. The opened file is checked against
// the path that was validated, so a swap to a symlink between the check and
// the open is refused.
func Open(rootAbs, name string, followSymlinks bool) (*os.File, Entry, error) {
	abs, err := JoinWithinRoot(rootAbs, name)
	if err != nil {
		return nil, Entry{}, err
	}
	lst, err := os.Lstat(abs)
	if err != nil {
		return nil, Entry{}, err
	}
	info, ok := eligible(rootAbs, abs, lst, followSymlinks)
	if !ok {
		return nil, Entry{}, fs.ErrNotExist
	}
	f, err := os.Open(abs)
	if err != nil {
		return nil, Entry{}, err
	}
	st, err := f.Stat()
	if err != nil || !os.SameFile(info, st) {
		f.Close()
		return nil, Entry{}, fs.ErrNotExist
	}
	return f, Entry{Name: name, Size: st.Size(), ModTime: st.ModTime()}, nil
}

// eligible takes the Lstat info of abs and returns the info of the file that
// would actually be served.
func eligible(rootAbs, abs string, lst fs.FileInfo, followSymlinks bool) (fs.FileInfo, bool) {
	if lst.Mode().IsRegular() {
		return lst, true
	}
	if lst.Mode()&fs.ModeSymlink == 0 || !followSymlinks {
		return nil, false
	}
	target, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, false
	}
	realRoot, err := filepath.EvalSymlinks(rootAbs)
	if err != nil {
		return nil, false
	}
	if !within(realRoot, target) {
		return nil, false
	}
	st, err := os.Stat(target)
	if err != nil || !st.Mode().IsRegular() {
		return nil, false
	}
	return st, true
}
