package tracker_test

import (
	"strings"
	"testing"

	"github.com/raysh454/sightline/internal/tracker"
)

func TestVisibleText_DropsScriptsAndStyles(t *testing.T) {
	t.Parallel()
	html := `<html><head><title>T</title><style>body{color:red}</style></head>
<body><h1>  Welcome   home </h1><script>var x = 1;</script><p>Prices <b>from $5</b></p></body></html>`

	text, err := tracker.VisibleText([]byte(html))
	if err != nil {
		t.Fatalf("VisibleText: %v", err)
	}
	if strings.Contains(text, "var x") || strings.Contains(text, "color:red") {
		t.Errorf("script/style leaked into text: %q", text)
	}
	want := "Welcome home\nPrices\nfrom $5"
	if text != want {
		t.Errorf("VisibleText = %q, want %q", text, want)
	}
}

func TestVisibleText_Empty(t *testing.T) {
	t.Parallel()
	text, err := tracker.VisibleText(nil)
	if err != nil || text != "" {
		t.Fatalf("VisibleText(nil) = %q, %v", text, err)
	}
}

func TestTextDiff(t *testing.T) {
	t.Parallel()

	if chunks := tracker.TextDiff("same\ntext", "same\ntext"); len(chunks) != 0 {
		t.Fatalf("expected no chunks for identical text, got %+v", chunks)
	}

	chunks := tracker.TextDiff("Welcome\nOld price\nFooter", "Welcome\nNew price\nFooter")
	var added, removed []string
	for _, c := range chunks {
		switch c.Type {
		case "added":
			added = append(added, c.Content)
		case "removed":
			removed = append(removed, c.Content)
		default:
			t.Errorf("unexpected chunk type %q", c.Type)
		}
	}
	if len(added) != 1 || added[0] != "New price" {
		t.Errorf("added = %q", added)
	}
	if len(removed) != 1 || removed[0] != "Old price" {
		t.Errorf("removed = %q", removed)
	}
}
