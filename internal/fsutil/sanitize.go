package fsutil

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrInvalidName is returned for names that are not a single, visible path
// segment.
var ErrInvalidName = errors.New("invalid name")

const (
	maxNameBytes = 255
	maxExtBytes  = 32
	fallbackName = "unnamed"

	// Characters Windows refuses in file names.
	reservedChars = `<>:"|?*`
)

var reservedDevices = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// SanitizeName turns a client-supplied file name (possibly a full path from
// the client's machine) into a single segment that is safe to create directly
// under the shared root. It never returns an empty or hidden name: non-ASCII
// names are kept as-is, and names that clean down to nothing fall back to an
// ASCII transliteration of the whole input, then to "unnamed".
func SanitizeName(raw string) string {
	if name := cleanSegment(lastSegment(raw)); validName(name) {
		return name
	}
	if name := transliterate(raw); validName(name) {
		return name
	}
	return fallbackName
}

// CheckName validates a name received for download. Unlike SanitizeName it
// does not rewrite anything: the name must already be a flat, visible segment.
func CheckName(name string) error {
	if !utf8.ValidString(name) || !validName(name) {
		return ErrInvalidName
	}
	return nil
}

// Disambiguate returns name with "(n)" inserted before the extension:
// photo.jpg, photo(1).jpg, photo(2).jpg ... n == 0 returns name unchanged.
func Disambiguate(name string, n int) string {
	if n <= 0 {
		return name
	}
	ext := extOf(name)
	stem := strings.TrimSuffix(name, ext)
	suffix := fmt.Sprintf("(%d)", n)
	stem = cutBytes(stem, maxNameBytes-len(ext)-len(suffix))
	return stem + suffix + ext
}

func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.HasPrefix(name, ".") {
		return false
	}
	return !strings.ContainsAny(name, "/\\\x00")
}

func lastSegment(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}

func cleanSegment(s string) string {
	s = strings.ToValidUTF8(s, "")
	s = norm.NFC.String(s)
	s = strings.Map(func(r rune) rune {
		switch {
		case r == 0:
			return -1
		case strings.ContainsRune(reservedChars, r):
			return '_'
		case unicode.IsSpace(r):
			return ' '
		case !unicode.IsPrint(r):
			return -1
		}
		return r
	}, s)
	s = strings.Trim(s, " .")
	return truncateName(guardDevice(s))
}

// transliterate folds accents (é -> e) and maps anything outside
// [A-Za-z0-9._-] to '_', collapsing runs.
func transliterate(raw string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, err := transform.String(t, strings.ToValidUTF8(raw, ""))
	if err != nil {
		s = raw
	}
	var b strings.Builder
	under := false
	for _, r := range s {
		if r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '-') {
			b.WriteRune(r)
			under = false
			continue
		}
		if !under {
			b.WriteByte('_')
			under = true
		}
	}
	out := strings.Trim(b.String(), "._-")
	return truncateName(guardDevice(out))
}

func guardDevice(s string) string {
	base := s
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	if reservedDevices[strings.ToUpper(strings.TrimSpace(base))] {
		return "_" + s
	}
	return s
}

func truncateName(s string) string {
	if len(s) <= maxNameBytes {
		return s
	}
	ext := extOf(s)
	stem := cutBytes(strings.TrimSuffix(s, ext), maxNameBytes-len(ext))
	return strings.TrimRight(stem, " .") + ext
}

// extOf is filepath.Ext, ignoring implausibly long "extensions".
func extOf(name string) string {
	ext := filepath.Ext(name)
	if len(ext) > maxExtBytes || ext == name {
		return ""
	}
	return ext
}

// cutBytes shortens s to at most n bytes without splitting a rune.
func cutBytes(s string, n int) string {
	if n < 0 {
		n = 0
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
