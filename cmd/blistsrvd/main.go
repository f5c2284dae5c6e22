// Command blistsrvd is a standalone HTTP server rendering mailing
// list archives, wrapping the same path dispatch as cmd/blistsrv (the
// CGI entry point) behind net/http instead of a webserver's SSI/CGI
// machinery, matching cmd/spilld's autocert-vs-devcert TLS selection
// and flag-driven startup.
package main

import (
	"crypto/subtle"
	"crypto/tls"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"

	"crawshaw.io/iox"
	"golang.org/x/crypto/acme/autocert"
	"golang.org/x/crypto/bcrypt"

	"github.com/openwall/blists/internal/config"
	"github.com/openwall/blists/internal/idx"
	"github.com/openwall/blists/internal/indexcache"
	"github.com/openwall/blists/internal/render"
	"github.com/openwall/blists/util/devcert"
	"github.com/openwall/blists/util/throttle"
)

func main() {
	log.SetFlags(0)

	flagDev := flag.Bool("dev", false, "development server: local CA cert instead of autocert")
	flagAddr := flag.String("addr", ":8080", "HTTP listen address")
	flagTLSAddr := flag.String("tls_addr", ":8443", "HTTPS listen address")
	flagHostname := flag.String("hostname", "", "public hostname, used by Let's Encrypt autocert")
	flagSpoolDir := flag.String("spool_dir", ".", "directory containing each list's mbox and .idx files")
	flagSafeDomains := flag.String("safe_domains", "", "comma-separated host suffixes that skip rel=nofollow on auto-linked URLs")
	flagCertCache := flag.String("cert_cache", "tls_certs", "autocert certificate cache directory")
	flagAuthUser := flag.String("auth_user", "", "basic auth username (leave empty to disable)")
	flagAuthPassHash := flag.String("auth_pass_hash", "", "bcrypt hash of the basic auth password")
	flagCacheDB := flag.String("day_count_cache", "", "path to a sqlite day-count cache (disabled if empty)")
	flag.Parse()

	cfg := config.Default()
	cfg.SpoolDir = *flagSpoolDir
	cfg.SafeDomains = config.ParseSafeDomains(*flagSafeDomains)

	rd := render.Renderer{Config: cfg, Log: log.Printf, Filer: iox.NewFiler(0)}
	if *flagCacheDB != "" {
		cache, err := indexcache.Open(*flagCacheDB)
		if err != nil {
			log.Fatalf("blistsrvd: opening day-count cache: %v", err)
		}
		rd.Cache = cache
	}

	mux := http.NewServeMux()
	mux.Handle("/", &archiveHandler{rd: rd})

	var handler http.Handler = mux
	if *flagAuthUser != "" {
		handler = basicAuth(*flagAuthUser, *flagAuthPassHash, &throttle.Throttle{}, mux)
	}

	go func() {
		log.Printf("blistsrvd: listening on %s (HTTP)", *flagAddr)
		if err := http.ListenAndServe(*flagAddr, handler); err != nil {
			log.Printf("blistsrvd: HTTP server: %v", err)
		}
	}()

	var tlsConfig *tls.Config
	if *flagDev {
		log.Printf("blistsrvd: development mode, using local CA certificate")
		c, err := devcert.Config()
		if err != nil {
			log.Fatal(err)
		}
		tlsConfig = c
	} else {
		if *flagHostname == "" {
			log.Fatal("blistsrvd: -hostname is required outside -dev mode")
		}
		mgr := &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(*flagHostname),
			Cache:      autocert.DirCache(*flagCertCache),
		}
		tlsConfig = &tls.Config{GetCertificate: mgr.GetCertificate}
	}

	ln, err := net.Listen("tcp", *flagTLSAddr)
	if err != nil {
		log.Fatal(err)
	}
	tlsLn := tls.NewListener(ln, tlsConfig)
	log.Printf("blistsrvd: listening on %s (HTTPS)", *flagTLSAddr)
	log.Fatal(http.Serve(tlsLn, handler))
}

// basicAuth enforces a single configured username/bcrypt-hashed
// password pair in constant time, the HTTP analogue of an -auth_user
// flag gating access to the whole archive. Repeated failures from the
// same remote address are slowed down by tr, the same per-key throttle
// spilldb/db's Auther uses to pace guesses against a password hash.
func basicAuth(user, passHash string, tr *throttle.Throttle, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.RemoteAddr
		tr.Throttle(key)

		gotUser, gotPass, ok := r.BasicAuth()
		validUser := ok && subtle.ConstantTimeCompare([]byte(gotUser), []byte(user)) == 1
		validPass := ok && bcrypt.CompareHashAndPassword([]byte(passHash), []byte(gotPass)) == nil
		if !validUser || !validPass {
			tr.Add(key)
			w.Header().Set("WWW-Authenticate", `Basic realm="blists"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// archiveHandler parses a request path into list/date/ordinal
// components and dispatches to the matching render.Renderer entry
// point, the net/http equivalent of cmd/blistsrv's argv/CGI-env
// dispatch.
type archiveHandler struct {
	rd render.Renderer
}

func (h *archiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p := strings.Trim(path.Clean(r.URL.Path), "/")
	segs := strings.Split(p, "/")
	if segs[0] == "" {
		http.Error(w, "Invalid request syntax", http.StatusBadRequest)
		return
	}
	list := segs[0]
	nums, ok := parseUintSegs(segs[1:])
	if !ok {
		http.Error(w, "Invalid request syntax", http.StatusBadRequest)
		return
	}

	var err error
	switch len(nums) {
	case 0:
		err = h.rd.YearIndex(w, list, 0)
	case 1:
		err = h.rd.YearIndex(w, list, nums[0]-idx.MinYear)
	case 2:
		err = h.rd.MonthIndex(w, list, nums[0]-idx.MinYear, nums[1])
	case 3:
		err = h.rd.DayIndex(w, list, nums[0]-idx.MinYear, nums[1], nums[2])
	case 4:
		err = h.rd.Message(w, list, nums[0]-idx.MinYear, nums[1], nums[2], nums[3])
	case 5:
		w.Header().Set("Content-Type", "application/octet-stream")
		_, err = h.rd.Attachment(w, list, nums[0]-idx.MinYear, nums[1], nums[2], nums[3], nums[4])
	default:
		http.Error(w, "Invalid request syntax", http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
	}
}

func parseUintSegs(segs []string) ([]int, bool) {
	if len(segs) == 1 && segs[0] == "" {
		return nil, true
	}
	out := make([]int, 0, len(segs))
	for _, s := range segs {
		if s == "" {
			continue
		}
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			return nil, false
		}
		out = append(out, v)
	}
	return out, true
}
