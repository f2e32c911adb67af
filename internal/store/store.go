package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"lanxfer/internal/fsutil"
)

const (
	stagePrefix = ".lanxfer-"
	stageSuffix = ".part"

	// maxAttempts bounds the (n) disambiguation search per publish.
	maxAttempts = 10000
)

// ErrNoFreeName is returned when every disambiguated candidate is taken.
var ErrNoFreeName = errors.New("no free file name")

// Store writes uploads into a single flat directory. Bytes are first written
// to a hidden staging file next to their destination, then published under
// the final name with an exclusive primitive, so an existing file is never
// overwritten and concurrent writers never pick the same name.
type Store struct {
	dir string
}

// Staged is a fully written, not yet visible upload.
type Staged struct {
	path   string
	Size   int64
	SHA256 string
}

func New(dir string) *Store {
	return &Store{dir: dir}
}

// Sweep removes staging files left behind by a previous process.
func (s *Store) Sweep() (int, error) {
	ents, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, err
	}
	var n int
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, stagePrefix) || !strings.HasSuffix(name, stageSuffix) {
			continue
		}
		if os.Remove(filepath.Join(s.dir, name)) == nil {
			n++
		}
	}
	return n, nil
}

// Stage copies src into a new staging file, hashing on the way.
// The copy stops early if ctx is cancelled; the partial file is removed.
func (s *Store) Stage(ctx context.Context, src io.Reader) (*Staged, error) {
	p := filepath.Join(s.dir, stagePrefix+uuid.NewString()+stageSuffix)
	f, err := os.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	fail := func(err error) (*Staged, error) {
		_ = f.Close()
		_ = os.Remove(p)
		return nil, err
	}

	h := sha256.New()
	w := io.MultiWriter(f, h)
	var n int64
	buf := make([]byte, 1024*1024)
	for {
		if ctx.Err() != nil {
			return fail(ctx.Err())
		}
		rn, rerr := src.Read(buf)
		if rn > 0 {
			if _, werr := w.Write(buf[:rn]); werr != nil {
				return fail(werr)
			}
			n += int64(rn)
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return fail(rerr)
		}
	}
	if err := f.Sync(); err != nil {
		return fail(err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(p)
		return nil, err
	}
	return &Staged{path: p, Size: n, SHA256: hex.EncodeToString(h.Sum(nil))}, nil
}

// Publish makes st visible as name, or as name(1), name(2)... if taken.
// It returns the name actually used. The staging file is consumed on success.
func (s *Store) Publish(st *Staged, name string) (string, error) {
	for i := 0; i < maxAttempts; i++ {
		cand := fsutil.Disambiguate(name, i)
		dst, err := fsutil.JoinWithinRoot(s.dir, cand)
		if err != nil {
			return "", err
		}
		err = linkExclusive(st.path, dst)
		if err == nil {
			_ = os.Remove(st.path)
			return cand, nil
		}
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		return "", err
	}
	return "", fmt.Errorf("%w: %s", ErrNoFreeName, name)
}

// Discard removes a staging file that will not be published.
func (s *Store) Discard(st *Staged) {
	if st != nil {
		_ = os.Remove(st.path)
	}
}

// linkExclusive creates dst pointing at the staged bytes, failing with
// fs.ErrExist if dst is already there. A hard link does this atomically; on
// filesystems without hard links the name is reserved with O_EXCL and the
// staged file is renamed over the reservation.
func linkExclusive(src, dst string) error {
	err := os.Link(src, dst)
	if err == nil || errors.Is(err, fs.ErrExist) {
		return err
	}
	f, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	_ = f.Close()
	if err := os.Rename(src, dst); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return nil
}
