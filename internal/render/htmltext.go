package render

import (
	"bytes"

	"golang.org/x/net/html"
)

// htmlToText is a best-effort plain-text reduction of a text/html
// part, the same tokenizer-driven walk as
// spilldb/spillbox/prettyhtml.go's PlainText: text tokens are copied
// through verbatim and block-level start tags (div, p, br, tr, li) insert a
// line break. It never fails; a token stream too broken to tokenize
// sensibly just yields whatever text survived.
func htmlToText(src []byte) []byte {
	var out bytes.Buffer
	z := html.NewTokenizer(bytes.NewReader(src))
	pendingNewlines := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return out.Bytes()
		case html.TextToken:
			for pendingNewlines > 0 {
				out.WriteString("\r\n")
				pendingNewlines--
			}
			out.Write(z.Text())
		case html.StartTagToken, html.SelfClosingTagToken:
			tn, _ := z.TagName()
			switch string(tn) {
			case "div", "p", "br", "tr", "li":
				pendingNewlines++
			}
		}
	}
}
