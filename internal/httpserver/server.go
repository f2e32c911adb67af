package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"mime"
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/netutil"

	"lanxfer/internal/config"
	"lanxfer/internal/fsutil"
	"lanxfer/internal/store"
	"lanxfer/internal/upload"
)

// uploadField is the multipart field carrying files; it may repeat.
const uploadField = "file"

// ErrAlreadyStarted is returned by Start/Serve on a server that is running.
var ErrAlreadyStarted = errors.New("server already started")

type Options struct {
	Config config.Config
}

// State is the server lifecycle. The only transition is NotStarted -> Running.
type State int

const (
	NotStarted State = iota
	Running
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not-started"
	case Running:
		return "running"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type Server struct {
	cfg     config.Config
	store   *store.Store
	uploads *upload.Ingestor
	thumbs  *thumbCache

	mu    sync.Mutex
	state State
	addr  net.Addr
	done  chan struct{}
	err   error
}

// New prepares a server for cfg.Root. Nothing is checked on disk until Start.
func New(opts Options) (*Server, error) {
	cfg := opts.Config
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, err
	}
	st := store.New(cfg.Root)
	s := &Server{
		cfg:     cfg,
		store:   st,
		uploads: upload.New(st),
		done:    make(chan struct{}),
	}
	if cfg.ThumbnailsEnabled() {
		s.thumbs = newThumbCache(cfg.ThumbSize, cfg.ThumbMaxSourceBytes, defaultThumbEntries)
	}
	return s, nil
}

func (s *Server) Config() config.Config {
	return s.cfg
}

func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Addr is the bound listener address, nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Start validates the configuration, listens on cfg.Addr and serves in the
// background. A configuration error leaves the server NotStarted.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Running {
		return ErrAlreadyStarted
	}
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.serveLocked(ln)
	return nil
}

// Serve is Start on a caller-provided listener.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Running {
		return ErrAlreadyStarted
	}
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	s.serveLocked(ln)
	return nil
}

func (s *Server) serveLocked(ln net.Listener) {
	if n, err := s.store.Sweep(); err != nil {
		log.Printf("sweep staging: %v", err)
	} else if n > 0 {
		log.Printf("removed %d stale staging files", n)
	}
	if n := s.cfg.MaxConnections; n > 0 {
		ln = netutil.LimitListener(ln, n)
	}
	s.addr = ln.Addr()
	s.state = Running

	hs := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
	}
	go func() {
		s.err = hs.Serve(ln)
		close(s.done)
	}()
}

// Wait blocks until the server stops serving, which only happens when the
// listener fails.
func (s *Server) Wait() error {
	<-s.done
	return s.err
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("GET /download/{name}", s.handleDownload)
	return withHeaders(logRequests(mux))
}

// --- handlers ---

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	entries := fsutil.ListFiles(s.cfg.Root, s.cfg.FollowSymlinks)
	data := indexData{
		Folder: filepath.Base(s.cfg.Root),
		Files:  make([]fileRow, 0, len(entries)),
	}
	budget := maxThumbDecodes
	for _, e := range entries {
		row := fileRow{
			Name: e.Name,
			Href: downloadHref(e.Name),
			Size: humanSize(e.Size),
		}
		if s.thumbs != nil && isImageExt(strings.ToLower(filepath.Ext(e.Name))) {
			row.Thumb = s.thumbs.dataURI(s.cfg.Root, e, s.cfg.FollowSymlinks, &budget)
		}
		data.Files = append(data.Files, row)
	}
	renderHTML(w, http.StatusOK, "index.html", data)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	}
	mr, err := r.MultipartReader()
	if err != nil {
		http.Error(w, "bad multipart", http.StatusBadRequest)
		return
	}
	res, err := s.uploads.Ingest(r.Context(), upload.FromMultipart(mr, uploadField))
	if err != nil {
		log.Printf("upload batch stopped after %d files: %v", res.Count(), err)
		if res.Count() == 0 {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				http.Error(w, "upload too large", http.StatusRequestEntityTooLarge)
				return
			}
			http.Error(w, "bad multipart", http.StatusBadRequest)
			return
		}
	}
	if res.Count()+res.Skipped+res.Failed == 0 {
		http.Error(w, "missing file", http.StatusBadRequest)
		return
	}
	if res.Count() == 0 && res.Failed > 0 {
		http.Error(w, "upload failed", http.StatusInternalServerError)
		return
	}

	if wantsJSON(r) {
		writeJSON(w, map[string]any{
			"ok":      true,
			"count":   res.Count(),
			"stored":  res.Stored,
			"files":   res.Files,
			"skipped": res.Skipped,
			"failed":  res.Failed,
		})
		return
	}
	renderHTML(w, http.StatusOK, "uploaded.html", uploadedData{Count: res.Count(), Failed: res.Failed})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	f, ent, err := fsutil.Open(s.cfg.Root, r.PathValue("name"), s.cfg.FollowSymlinks)
	if err != nil {
		// Invalid names and traversal attempts look exactly like missing files.
		if !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, fsutil.ErrInvalidName) {
			log.Printf("download: %v", err)
		}
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	if ct := contentTypeForName(ent.Name); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("Content-Disposition", attachment(ent.Name))
	http.ServeContent(w, r, ent.Name, ent.ModTime, f)
}

// --- helpers ---

func downloadHref(name string) string {
	return "/download/" + url.PathEscape(name)
}

// attachment builds a Content-Disposition value; non-ASCII names are encoded
// as filename*=utf-8''...
func attachment(name string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment"
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func isImageExt(ext string) bool {
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return true
	default:
		return false
	}
}

func contentTypeForName(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return ""
	}
	// Markup is never served as markup.
	switch ext {
	case ".html", ".htm", ".svg", ".xhtml", ".js", ".mjs":
		return "text/plain; charset=utf-8"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	// Fallbacks for systems with sparse mime tables.
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".mkv":
		return "video/x-matroska"
	case ".mov":
		return "video/quicktime"
	case ".mp3":
		return "audio/mpeg"
	case ".m4a":
		return "audio/mp4"
	case ".wav":
		return "audio/wav"
	case ".flac":
		return "audio/flac"
	case ".pdf":
		return "application/pdf"
	case ".txt", ".log", ".md", ".json", ".yaml", ".yml", ".csv":
		return "text/plain; charset=utf-8"
	case ".zip":
		return "application/zip"
	case ".gz":
		return "application/gzip"
	default:
		return ""
	}
}
