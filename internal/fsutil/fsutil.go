package fsutil

import (
	"errors"
	"path/filepath"
	"strings"
)

var errEscape = errors.New("path escape")

// JoinWithinRoot returns the absolute path of name inside rootAbs. name must be
// a single flat segment (see CheckName); the result is always a direct child of
// rootAbs.
func JoinWithinRoot(rootAbs string, name string) (string, error) {
	if err := CheckName(name); err != nil {
		return "", err
	}
	rootClean := filepath.Clean(rootAbs)
	abs := filepath.Clean(filepath.Join(rootClean, name))
	if filepath.Dir(abs) != rootClean {
		return "", errEscape
	}
	return abs, nil
}

// within reports whether p is rootAbs itself or lies below it.
func within(rootAbs, p string) bool {
	rootClean := filepath.Clean(rootAbs)
	p = filepath.Clean(p)
	return p == rootClean || strings.HasPrefix(p, rootClean+string(filepath.Separator))
}
