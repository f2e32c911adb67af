package main

import (
	"flag"
	"log"
	"os"
	"strings"

	"lanxfer/internal/announce"
	"lanxfer/internal/config"
	"lanxfer/internal/httpserver"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	var (
		cfgPath   = flag.String("config", "", "path to config file, .json or .yaml (optional)")
		root      = flag.String("root", "", "shared folder (default: current directory)")
		addr      = flag.String("addr", "", "listen address (default "+config.DefaultAddr+")")
		maxUpload = flag.Int64("max-upload", -1, "max bytes per upload request, 0 = unlimited")
		maxConns  = flag.Int("max-conns", -1, "max concurrent connections, 0 = unlimited")
		follow    = flag.Bool("follow-symlinks", false, "list and serve symlinks that stay inside the shared folder")
		noThumbs  = flag.Bool("no-thumbs", false, "disable image thumbnails on the listing page")
		noQR      = flag.Bool("no-qr", false, "do not print a QR code of the session URL")
		open      = flag.Bool("open", false, "open the session in the local browser")
	)
	flag.Parse()

	var cfg config.Config
	if *cfgPath != "" {
		var err error
		cfg, err = config.Load(*cfgPath)
		if err != nil {
			log.Fatalf("%v", err)
		}
	}

	// Flags override the config file.
	if strings.TrimSpace(*root) != "" {
		cfg.Root = *root
	}
	if cfg.Root == "" {
		wd, err := os.Getwd()
		if err != nil {
			log.Fatalf("getwd: %v", err)
		}
		cfg.Root = wd
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *maxUpload >= 0 {
		cfg.MaxUploadBytes = *maxUpload
	}
	if *maxConns >= 0 {
		cfg.MaxConnections = *maxConns
	}
	if *follow {
		cfg.FollowSymlinks = true
	}
	if *noThumbs {
		off := false
		cfg.Thumbnails = &off
	}
	if *noQR {
		off := false
		cfg.ShowQR = &off
	}
	if *open {
		cfg.OpenBrowser = true
	}

	srv, err := httpserver.New(httpserver.Options{Config: cfg})
	if err != nil {
		log.Fatalf("server init: %v", err)
	}
	if err := srv.Start(); err != nil {
		log.Fatalf("start: %v", err)
	}
	cfg = srv.Config()

	announceSession(cfg, srv.Addr().String())

	if err := srv.Wait(); err != nil {
		log.Fatalf("serve: %v", err)
	}
}

func announceSession(cfg config.Config, bound string) {
	url, err := announce.SessionURL(bound, announce.LocalIP())
	if err != nil {
		log.Printf("session url: %v", err)
		return
	}
	log.Printf("lanxfer listening on %s (root=%s)", bound, cfg.Root)
	log.Printf("open %s on any device in this network", url)

	if cfg.QREnabled() {
		announce.PrintQR(os.Stdout, url)
	}
	if cfg.OpenBrowser {
		local, err := announce.LocalURL(bound)
		if err == nil {
			err = announce.OpenBrowser(local)
		}
		if err != nil {
			log.Printf("open browser: %v", err)
		}
	}
}
