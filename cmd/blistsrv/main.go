// Command blistsrv is the CGI/SSI entry point for rendering a mailing
// list archive: invoked once per request with a mode argument and the
// list/date/ordinal path encoded in the environment or argv, exactly
// as original_source/bit.c dispatched to html_message/html_attachment/
// html_day_index/html_month_index/html_year_index. It renders one
// page to stdout and exits 0, or writes an error page and exits 1.
package main

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"crawshaw.io/iox"

	"github.com/openwall/blists/internal/config"
	"github.com/openwall/blists/internal/idx"
	"github.com/openwall/blists/internal/indexcache"
	"github.com/openwall/blists/internal/render"
)

type mode int

const (
	modeHeader mode = iota
	modeBody
	modeHeaderCensored
	modeBodyCensored
	modeAttachment
)

func main() {
	os.Exit(run())
}

func run() int {
	m, ok := parseMode(os.Args)
	if !ok {
		return errorPage("Invalid arguments")
	}

	ssi := os.Getenv("SERVER_PROTOCOL") == "INCLUDED"

	var listPath string
	if m == modeAttachment {
		if ssi || len(os.Args) != 3 {
			return errorPage("Invalid invocation mode")
		}
		listPath = os.Args[2]
	} else {
		if !ssi {
			return errorPage("Invalid invocation mode")
		}
		listPath = os.Getenv("QUERY_STRING_UNESCAPED")
	}
	if listPath == "" {
		return errorPage("Invalid request syntax")
	}

	list, rest, ok := splitListName(listPath)
	if !ok {
		return errorPage("Invalid request syntax")
	}

	rd := render.Renderer{Config: loadConfig(), Filer: iox.NewFiler(0)}
	if cachePath := os.Getenv("BLISTS_DAY_COUNT_CACHE"); cachePath != "" {
		if cache, err := indexcache.Open(cachePath); err == nil {
			rd.Cache = cache
		}
	}

	switch m {
	case modeAttachment:
		y, mo, d, n, a, ok := parse5(rest)
		if !ok {
			return errorPage("Invalid request syntax")
		}
		contentType, err := rd.Attachment(os.Stdout, list, y-idx.MinYear, mo, d, n, a)
		if err != nil {
			return errorPage(err.Error())
		}
		fmt.Fprintf(os.Stderr, "Content-Type: %s\n", contentType)
		return 0
	default:
		return dispatchHTML(rd, list, rest)
	}
}

func dispatchHTML(rd render.Renderer, list, rest string) int {
	if y, mo, d, n, ok := parse4(rest); ok {
		return writeOr500(rd.Message(os.Stdout, list, y-idx.MinYear, mo, d, n))
	}
	if y, mo, d, ok := parse3Slash(rest); ok {
		return writeOr500(rd.DayIndex(os.Stdout, list, y-idx.MinYear, mo, d))
	}
	if y, mo, ok := parse2Slash(rest); ok {
		return writeOr500(rd.MonthIndex(os.Stdout, list, y-idx.MinYear, mo))
	}
	if y, ok := parse1Slash(rest); ok && y != 0 {
		return writeOr500(rd.YearIndex(os.Stdout, list, y-idx.MinYear))
	}
	if rest == "" {
		return writeOr500(rd.YearIndex(os.Stdout, list, 0))
	}
	return errorPage("Invalid request syntax")
}

func writeOr500(err error) int {
	if err != nil {
		return errorPage(err.Error())
	}
	return 0
}

func errorPage(msg string) int {
	fmt.Printf("<p>Error: %s</p>\n", msg)
	return 1
}

func parseMode(args []string) (mode, bool) {
	if len(args) == 2 {
		switch args[1] {
		case "header":
			return modeHeader, true
		case "body":
			return modeBody, true
		case "header-censored":
			return modeHeaderCensored, true
		case "body-censored":
			return modeBodyCensored, true
		}
		return 0, false
	}
	if len(args) == 3 && args[1] == "attachment" {
		return modeAttachment, true
	}
	return 0, false
}

var listNameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,98}$`)

// splitListName consumes the "<list>/" prefix of path, matching
// bit.c's byte-at-a-time scan (lowercase letters and digits anywhere,
// '-' anywhere but the first byte, up to 99 bytes, terminated by '/').
func splitListName(path string) (list, rest string, ok bool) {
	slash := strings.IndexByte(path, '/')
	if slash < 0 {
		return "", "", false
	}
	list = path[:slash]
	if !listNameRe.MatchString(list) {
		return "", "", false
	}
	return list, path[slash+1:], true
}

// parseUintsExact parses exactly n slash-separated unsigned integers
// with no trailing slash, the message/attachment path form.
func parseUintsExact(rest string, n int) ([]int, bool) {
	parts := strings.Split(rest, "/")
	return parseUintParts(parts, n)
}

// parseUintsSlash parses exactly n slash-separated unsigned integers
// followed by a mandatory trailing slash, the day/month/year index
// path form.
func parseUintsSlash(rest string, n int) ([]int, bool) {
	if !strings.HasSuffix(rest, "/") {
		return nil, false
	}
	parts := strings.Split(strings.TrimSuffix(rest, "/"), "/")
	return parseUintParts(parts, n)
}

func parseUintParts(parts []string, n int) ([]int, bool) {
	if len(parts) != n {
		return nil, false
	}
	out := make([]int, n)
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

func parse5(rest string) (y, m, d, n, a int, ok bool) {
	v, ok := parseUintsExact(rest, 5)
	if !ok {
		return 0, 0, 0, 0, 0, false
	}
	return v[0], v[1], v[2], v[3], v[4], true
}

func parse4(rest string) (y, m, d, n int, ok bool) {
	v, ok := parseUintsExact(rest, 4)
	if !ok {
		return 0, 0, 0, 0, false
	}
	return v[0], v[1], v[2], v[3], true
}

func parse3Slash(rest string) (y, m, d int, ok bool) {
	v, ok := parseUintsSlash(rest, 3)
	if !ok {
		return 0, 0, 0, false
	}
	return v[0], v[1], v[2], true
}

func parse2Slash(rest string) (y, m int, ok bool) {
	v, ok := parseUintsSlash(rest, 2)
	if !ok {
		return 0, 0, false
	}
	return v[0], v[1], true
}

func parse1Slash(rest string) (y int, ok bool) {
	v, ok := parseUintsSlash(rest, 1)
	if !ok {
		return 0, false
	}
	return v[0], true
}

func loadConfig() config.Config {
	cfg := config.Default()
	if dir := os.Getenv("BLISTS_SPOOL_DIR"); dir != "" {
		cfg.SpoolDir = dir
	}
	cfg.SafeDomains = config.ParseSafeDomains(os.Getenv("BLISTS_SAFE_DOMAINS"))
	return cfg
}
