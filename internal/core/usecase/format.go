package usecase

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/regulait/parecer/internal/core/domain"
)

const contextBlockSeparator = "\n---\n"

// formatContext renders evidence as numbered source blocks for the answer
// prompt. Blocks keep retrieval order; when maxChars would be exceeded the
// last block that fits is truncated at a rune boundary and the rest are
// dropped. Higher-ranked blocks are never sacrificed for lower-ranked ones,
// and the first block is always emitted even under a tiny budget.
func formatContext(evidence []domain.Evidence, maxChars int) string {
	if len(evidence) == 0 {
		return ""
	}

	var b strings.Builder
	used := 0
	for i, ev := range evidence {
		block := formatEvidenceBlock(i+1, ev)
		sep := ""
		if i > 0 {
			sep = contextBlockSeparator
		}

		if maxChars <= 0 {
			b.WriteString(sep)
			b.WriteString(block)
			continue
		}

		blockLen := len([]rune(block))
		sepLen := len([]rune(sep))
		if used+sepLen+blockLen <= maxChars {
			b.WriteString(sep)
			b.WriteString(block)
			used += sepLen + blockLen
			continue
		}

		// At i == 0 this is the whole budget, so the first block always
		// yields output.
		remaining := maxChars - used - sepLen
		if remaining > 0 {
			b.WriteString(sep)
			b.WriteString(truncateRunes(block, remaining))
		}
		break
	}
	return b.String()
}

func formatEvidenceBlock(position int, ev domain.Evidence) string {
	source := ev.SourceLabel
	if source == "" {
		source = ev.DocumentID
	}
	if source == "" {
		source = "desconhecida"
	}

	page := "-"
	if ev.PageNumber > 0 {
		page = strconv.Itoa(ev.PageNumber)
	}

	docType := ev.DocType
	if docType == "" {
		docType = "-"
	}

	return fmt.Sprintf("[%d] Fonte: %s | Página: %s | Tipo: %s\nConteúdo: %s",
		position, source, page, docType, ev.TextExcerpt)
}

// truncateRunes shortens s to at most limit runes, never splitting a
// multi-byte character.
func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
