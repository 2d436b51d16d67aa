// Package htmlsanitize cleans translated HTML returned by a model.
package htmlsanitize

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const fence = "```"

// Clean removes a surrounding Markdown code fence and unwraps document-level
// <html>/<body> wrappers. Fragments without wrappers are returned unchanged.
func Clean(content string) string {
	content = stripFence(content)

	lower := strings.ToLower(content)
	if !strings.Contains(lower, "<html") && !strings.Contains(lower, "<body") {
		return content
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return content
	}
	inner, err := doc.Find("body").First().Html()
	if err != nil {
		return content
	}
	return strings.TrimSpace(inner)
}

func stripFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, fence) || !strings.HasSuffix(trimmed, fence) || len(trimmed) < 2*len(fence) {
		return content
	}

	body := strings.TrimSuffix(trimmed, fence)
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	} else {
		body = strings.TrimPrefix(body, fence)
	}
	return strings.TrimSpace(body)
}
