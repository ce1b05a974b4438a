package extractor

import (
	"strings"
	"unicode/utf8"

	"github.com/regulait/parecer/internal/core/domain"
)

func extractPlain(content []byte) ([]domain.PageContent, error) {
	if !utf8.Valid(content) {
		content = []byte(strings.ToValidUTF8(string(content), "�"))
	}
	return []domain.PageContent{{Page: 0, Text: string(content)}}, nil
}
