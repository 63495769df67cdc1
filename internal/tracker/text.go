package tracker

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/raysh454/sightline/internal/model"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// VisibleText extracts the human-visible text of a rendered page, one
// whitespace-collapsed line per block of text. Script, style and template
// content is dropped.
func VisibleText(html []byte) (string, error) {
	if len(html) == 0 {
		return "", nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript, template, head").Remove()

	var lines []string
	doc.Find("body").Contents().Each(func(_ int, s *goquery.Selection) {
		collectText(s, &lines)
	})
	return strings.Join(lines, "\n"), nil
}

func collectText(s *goquery.Selection, lines *[]string) {
	if goquery.NodeName(s) == "#text" {
		if text := strings.Join(strings.Fields(s.Text()), " "); text != "" {
			*lines = append(*lines, text)
		}
		return
	}
	s.Contents().Each(func(_ int, child *goquery.Selection) {
		collectText(child, lines)
	})
}

// TextDiff returns the added and removed runs between two visible texts.
// Equal runs and whitespace-only runs are omitted.
func TextDiff(prev, curr string) []model.DiffChunk {
	if prev == curr {
		return nil
	}
	dmp := diffmatchpatch.New()

	// line mode keeps chunks aligned to text blocks
	a, b, lineArray := dmp.DiffLinesToChars(prev, curr)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)
	diffs = dmp.DiffCleanupSemantic(diffs)

	chunks := make([]model.DiffChunk, 0, len(diffs))
	for _, d := range diffs {
		var chunkType string
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			chunkType = "added"
		case diffmatchpatch.DiffDelete:
			chunkType = "removed"
		default:
			continue
		}
		if strings.TrimSpace(d.Text) == "" {
			continue
		}
		chunks = append(chunks, model.DiffChunk{Type: chunkType, Content: strings.TrimRight(d.Text, "\n")})
	}
	return chunks
}
