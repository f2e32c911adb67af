package httpserver

import (
	"bytes"
	"encoding/base64"
	"errors"
	"html/template"
	"image"
	"image/jpeg"
	"io"
	"os"
	"sync"

	// decoders
	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"lanxfer/internal/fsutil"
)

const (
	defaultThumbEntries = 512

	// maxThumbPixels caps the declared dimensions of a source image. The
	// header is checked before any pixel buffer is allocated.
	maxThumbPixels = 40_000_000

	// maxThumbDecodes caps cache misses decoded by a single listing.
	maxThumbDecodes = 8
)

var errThumbTooLarge = errors.New("image dimensions too large")

type thumbKey struct {
	name  string
	size  int64
	mtime int64
}

// thumbCache holds listing thumbnails as data: URIs. Keys include size and
// mtime so a replaced file gets a fresh thumbnail. Failures are cached as "".
type thumbCache struct {
	max    int
	maxSrc int64
	limit  int

	mu    sync.Mutex
	items map[thumbKey]template.URL
	order []thumbKey
}

func newThumbCache(max int, maxSrc int64, limit int) *thumbCache {
	return &thumbCache{
		max:    max,
		maxSrc: maxSrc,
		limit:  limit,
		items:  map[thumbKey]template.URL{},
	}
}

// dataURI returns the cached thumbnail for e. A miss is decoded only while
// *budget is positive; once it is spent the row goes without a thumbnail and
// a later listing picks it up.
func (c *thumbCache) dataURI(root string, e fsutil.Entry, followSymlinks bool, budget *int) template.URL {
	if e.Size <= 0 || e.Size > c.maxSrc {
		return ""
	}
	key := thumbKey{name: e.Name, size: e.Size, mtime: e.ModTime.UnixNano()}
	c.mu.Lock()
	uri, ok := c.items[key]
	c.mu.Unlock()
	if ok {
		return uri
	}
	if *budget <= 0 {
		return ""
	}
	*budget--

	f, _, err := fsutil.Open(root, e.Name, followSymlinks)
	if err == nil {
		var b []byte
		b, err = makeThumb(f, c.max)
		f.Close()
		if err == nil {
			uri = template.URL("data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(b))
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[key]; !ok {
		if len(c.order) >= c.limit {
			delete(c.items, c.order[0])
			c.order = c.order[1:]
		}
		c.items[key] = uri
		c.order = append(c.order, key)
	}
	return uri
}

func makeThumb(r io.ReadSeeker, max int) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(r)
	if err != nil {
		return nil, err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, os.ErrInvalid
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxThumbPixels {
		return nil, errThumbTooLarge
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	src, _, err := image.Decode(r)
	if err != nil {
		return nil, err
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, os.ErrInvalid
	}
	if max <= 0 {
		max = 96
	}

	nw, nh := w, h
	if w > h {
		if w > max {
			nw = max
			nh = int(float64(h) * (float64(max) / float64(w)))
		}
	} else {
		if h > max {
			nh = max
			nw = int(float64(w) * (float64(max) / float64(h)))
		}
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var out bytes.Buffer
	enc := jpeg.Options{Quality: 82}
	if err := jpeg.Encode(&out, dst, &enc); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
