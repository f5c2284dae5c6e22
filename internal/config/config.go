// Package config centralizes the few process-wide settings the
// original C program carried as compile-time constants in params.h
// (MAIL_SPOOL_PATH, the safe-domain allowlist baked into html.c's
// match_domain): here they're fields on a struct threaded explicitly
// through the renderer, matching the design notes' "parameter-passed
// configuration struct, not process-wide state" replacement for
// global html_flags.
package config

import "strings"

// Config holds the renderer and indexer's runtime configuration.
type Config struct {
	// SpoolDir is the directory containing each mailing list's mbox
	// and sibling .idx file.
	SpoolDir string

	// SafeDomains is the set of host suffixes for which auto-linked
	// URLs omit rel="nofollow". Replaces html.c's hardcoded
	// openwall.com/.net/.org/.info allowlist.
	SafeDomains []string

	// MaxMessageSize and MaxMessageSizeTrunc bound how much of an
	// over-large message gets read into memory for rendering.
	MaxMessageSize      int64
	MaxMessageSizeTrunc int64

	// MaxWithAttachmentSize raises the cap when the render is an
	// attachment fetch rather than an inline message view.
	MaxWithAttachmentSize int64

	// MaxURLLength bounds how long a detected URL may be before the
	// renderer declines to linkify it.
	MaxURLLength int

	// MaxMailboxBytes is a soft cap (Open Question 1): indexing past
	// it is logged, not aborted.
	MaxMailboxBytes int64

	// MaxShortMsgList and MaxRecentMsgList are listing-length limits
	// carried over from params.h. The renderer does not consult them:
	// day listings are not truncated and no overflow link is emitted.
	MaxShortMsgList  int
	MaxRecentMsgList int
}

// Default returns the configuration that matches the original's
// params.h constants, with an empty safe-domain list (the operator
// supplies their own via blistsrvd's -safe_domains flag or blistsrv's
// BLISTS_SAFE_DOMAINS environment variable).
func Default() Config {
	return Config{
		SpoolDir:              ".",
		MaxMessageSize:        1024 * 1024,
		MaxMessageSizeTrunc:   100 * 1024,
		MaxWithAttachmentSize: 30 * 1024 * 1024,
		MaxURLLength:          1024,
		MaxMailboxBytes:       100 * 1024 * 1024 * 1024,
		MaxShortMsgList:       20,
		MaxRecentMsgList:      20,
	}
}

// IsSafeDomain reports whether host matches one of the configured
// safe-domain suffixes.
func (c Config) IsSafeDomain(host string) bool {
	host = strings.ToLower(host)
	for _, d := range c.SafeDomains {
		d = strings.ToLower(strings.TrimPrefix(d, "."))
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// ParseSafeDomains splits a comma-separated safe-domain list
// (-safe_domains flag or BLISTS_SAFE_DOMAINS value).
func ParseSafeDomains(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
