package main

import "testing"

func TestSplitListName(t *testing.T) {
	list, rest, ok := splitListName("my-list/2006/1/2/1")
	if !ok || list != "my-list" || rest != "2006/1/2/1" {
		t.Fatalf("got list=%q rest=%q ok=%v", list, rest, ok)
	}
	if _, _, ok := splitListName("no-slash-here"); ok {
		t.Errorf("expected failure without a slash")
	}
}

func TestParse4RejectsTrailingSlash(t *testing.T) {
	if _, _, _, _, ok := parse4("2006/1/2/1/"); ok {
		t.Errorf("parse4 should reject a trailing slash")
	}
	if y, m, d, n, ok := parse4("2006/1/2/1"); !ok || y != 2006 || m != 1 || d != 2 || n != 1 {
		t.Errorf("parse4(2006/1/2/1) = %d %d %d %d %v", y, m, d, n, ok)
	}
}

func TestParse1SlashRequiresTrailingSlash(t *testing.T) {
	if _, ok := parse1Slash("2006"); ok {
		t.Errorf("parse1Slash should require a trailing slash")
	}
	if y, ok := parse1Slash("2006/"); !ok || y != 2006 {
		t.Errorf("parse1Slash(2006/) = %d %v", y, ok)
	}
}

func TestParseModeVariants(t *testing.T) {
	cases := []struct {
		args []string
		want mode
		ok   bool
	}{
		{[]string{"blistsrv", "header"}, modeHeader, true},
		{[]string{"blistsrv", "body"}, modeBody, true},
		{[]string{"blistsrv", "attachment", "my-list"}, modeAttachment, true},
		{[]string{"blistsrv", "nonsense"}, 0, false},
	}
	for _, c := range cases {
		got, ok := parseMode(c.args)
		if ok != c.ok || (ok && got != c.want) {
			t.Errorf("parseMode(%v) = %v, %v, want %v, %v", c.args, got, ok, c.want, c.ok)
		}
	}
}
