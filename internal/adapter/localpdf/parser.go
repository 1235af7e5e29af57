package localpdf

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dslipak/pdf"

	"paperchat/internal/text"
)

// pageTimeout bounds extraction of a single page; malformed content streams
// can send the extractor into a spin.
const pageTimeout = 10 * time.Second

// Parser extracts per-page plain text from a PDF on disk. It is the fallback
// when no external parse API key is configured.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(path string) ([]text.Page, error) {
	reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}

	numPages := reader.NumPage()
	var pages []text.Page
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		content, err := extractPage(page)
		if err != nil {
			// A single unreadable page should not sink the document.
			slog.Warn("page extraction failed", "page", i, "error", err)
			continue
		}
		if strings.TrimSpace(content) == "" {
			continue
		}

		pages = append(pages, text.Page{Number: i, Text: content})
	}

	if len(pages) == 0 {
		return nil, errors.New("no extractable text in pdf")
	}
	return pages, nil
}

func extractPage(page pdf.Page) (string, error) {
	type result struct {
		content string
		err     error
	}
	resChan := make(chan result, 1)

	go func() {
		content, err := page.GetPlainText(nil)
		resChan <- result{content, err}
	}()

	select {
	case r := <-resChan:
		return r.content, r.err
	case <-time.After(pageTimeout):
		return "", errors.New("page extraction timed out")
	}
}
