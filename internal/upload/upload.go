package upload

import (
	"context"
	"errors"
	"io"
	"log"
	"mime"
	"mime/multipart"

	"lanxfer/internal/fsutil"
	"lanxfer/internal/store"
)

// Entry is one file of an upload batch: the name the client declared and its
// bytes. Body is only valid until the next call to Source.Next.
type Entry struct {
	Name string
	Body io.Reader
}

// Source yields the entries of one batch in order. It returns io.EOF once the
// batch is exhausted; any other error means the batch itself is broken.
type Source interface {
	Next() (Entry, error)
}

// File describes one stored upload.
type File struct {
	Name   string `json:"name"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
}

// Result summarises one batch. Stored holds the final on-disk names in
// submission order; Files holds the same entries with size and checksum.
type Result struct {
	Stored  []string `json:"stored"`
	Files   []File   `json:"files"`
	Skipped int      `json:"skipped"`
	Failed  int      `json:"failed"`
}

func (r Result) Count() int {
	return len(r.Stored)
}

type Ingestor struct {
	store *store.Store
}

func New(st *store.Store) *Ingestor {
	return &Ingestor{store: st}
}

// Ingest writes every entry of src into the store. Entries with an empty name
// are skipped. A failure on one entry is counted and the batch continues; a
// failure of src itself stops the batch and is returned together with what
// was stored so far.
func (in *Ingestor) Ingest(ctx context.Context, src Source) (Result, error) {
	res := Result{Stored: []string{}, Files: []File{}}
	for {
		e, err := src.Next()
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		if err != nil {
			return res, err
		}
		if e.Name == "" {
			res.Skipped++
			continue
		}
		name := fsutil.SanitizeName(e.Name)
		f, err := in.put(ctx, e.Body, name)
		if err != nil {
			res.Failed++
			log.Printf("upload %s: %v", name, err)
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			continue
		}
		res.Stored = append(res.Stored, f.Name)
		res.Files = append(res.Files, f)
	}
}

func (in *Ingestor) put(ctx context.Context, body io.Reader, name string) (File, error) {
	st, err := in.store.Stage(ctx, body)
	if err != nil {
		return File{}, err
	}
	stored, err := in.store.Publish(st, name)
	if err != nil {
		in.store.Discard(st)
		return File{}, err
	}
	log.Printf("stored %s (%d bytes, sha256 %s)", stored, st.Size, st.SHA256)
	return File{Name: stored, Size: st.Size, SHA256: st.SHA256}, nil
}

// FromMultipart adapts a streaming multipart reader. Only file parts named
// field are yielded; other form fields are skipped.
func FromMultipart(mr *multipart.Reader, field string) Source {
	return &multipartSource{mr: mr, field: field}
}

type multipartSource struct {
	mr    *multipart.Reader
	field string
	cur   *multipart.Part
}

func (m *multipartSource) Next() (Entry, error) {
	if m.cur != nil {
		_ = m.cur.Close()
		m.cur = nil
	}
	for {
		p, err := m.mr.NextPart()
		if err != nil {
			return Entry{}, err
		}
		if p.FormName() != m.field {
			_ = p.Close()
			continue
		}
		m.cur = p
		return Entry{Name: declaredName(p), Body: p}, nil
	}
}

// declaredName returns the raw filename parameter. Part.FileName is not used
// because it already strips directories, and the sanitizer wants the input
// exactly as the client sent it.
func declaredName(p *multipart.Part) string {
	_, params, err := mime.ParseMediaType(p.Header.Get("Content-Disposition"))
	if err != nil {
		return p.FileName()
	}
	return params["filename"]
}
