package extractor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/regulait/parecer/internal/core/domain"
)

// extractExcel maps each sheet to one page so citations can point at the
// sheet a figure came from.
func extractExcel(content []byte) ([]domain.PageContent, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	var pages []domain.PageContent
	for i, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}

		var buf strings.Builder
		for _, row := range rows {
			buf.WriteString(strings.Join(row, "\t"))
			buf.WriteByte('\n')
		}
		pages = append(pages, domain.PageContent{
			Page: i + 1,
			Text: strings.TrimSpace(buf.String()),
		})
	}
	return pages, nil
}
