package extractor

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/regulait/parecer/internal/core/domain"
)

// extractHTML collects visible text nodes. HTML sources carry no page
// structure, so the whole document lands on page 0.
func extractHTML(content []byte) ([]domain.PageContent, error) {
	root, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			}
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				parts = append(parts, text)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)

	return []domain.PageContent{{Page: 0, Text: strings.Join(parts, "\n")}}, nil
}
