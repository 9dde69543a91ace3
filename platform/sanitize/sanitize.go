// Package sanitize provides text sanitization utilities for user input and
// HTML-to-text conversion for email bodies.
package sanitize

import (
	"strings"

	"golang.org/x/net/html"
)

// Text strips markup from user-provided free text (special instructions, notes)
// and collapses runs of whitespace on each line.
func Text(s string) string {
	plain := extract(s, false)
	lines := strings.Split(plain, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		out = append(out, strings.Join(strings.Fields(line), " "))
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// TextPtr is a helper for optional string pointers
func TextPtr(s *string) *string {
	if s == nil {
		return nil
	}
	result := Text(*s)
	return &result
}

// PlainText renders an HTML email body as readable plain text: block elements
// become line breaks, links keep their target in parentheses, and script, style
// and title content is dropped.
func PlainText(htmlBody string) string {
	text := extract(htmlBody, true)
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

var skipTags = map[string]bool{"script": true, "style": true, "title": true}

var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "tr": true, "li": true, "table": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"ul": true, "ol": true, "hr": true, "section": true, "footer": true, "header": true,
}

func extract(s string, keepLinks bool) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	skip := 0
	var href string

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// io.EOF or malformed input; either way keep what was read.
			return b.String()
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			tag := string(name)
			if skipTags[tag] {
				if tt == html.StartTagToken {
					skip++
				}
				continue
			}
			if blockTags[tag] {
				b.WriteString("\n")
			}
			if keepLinks && tag == "a" && hasAttr {
				href = ""
				for {
					key, val, more := z.TagAttr()
					if string(key) == "href" {
						href = string(val)
					}
					if !more {
						break
					}
				}
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if skipTags[tag] {
				if skip > 0 {
					skip--
				}
				continue
			}
			if keepLinks && tag == "a" && href != "" && !strings.HasPrefix(href, "#") {
				b.WriteString(" (" + href + ")")
				href = ""
			}
			if blockTags[tag] {
				b.WriteString("\n")
			}
		}
	}
}
