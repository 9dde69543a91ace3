package sanitize

import "testing"

func TestTextStripsMarkup(t *testing.T) {
	got := Text("  Gate code <b>1234</b>\n<script>alert(1)</script>dog   in yard ")
	want := "Gate code 1234\ndog in yard"
	if got != want {
		t.Fatalf("Text() = %q, want %q", got, want)
	}
}

func TestPlainTextKeepsLinksAndParagraphs(t *testing.T) {
	got := PlainText(`<p>Hi Dana,</p><p>Refer a friend <a href="https://example.com/r/ABC">here</a>.</p><style>p{}</style>`)
	want := "Hi Dana,\n\nRefer a friend here (https://example.com/r/ABC)."
	if got != want {
		t.Fatalf("PlainText() = %q, want %q", got, want)
	}
}

func TestTextPtr(t *testing.T) {
	if TextPtr(nil) != nil {
		t.Fatalf("expected nil passthrough")
	}
	in := "<i>x</i>"
	if got := TextPtr(&in); got == nil || *got != "x" {
		t.Fatalf("unexpected TextPtr result %v", got)
	}
}
