package text

import (
	"fmt"
	"strings"
)

// Page is one parsed PDF page.
type Page struct {
	Number int
	Text   string
}

// Chunk is a bounded window of document text, tagged with the page range it
// covers. Its ID is deterministic over (doc, range, index) so re-indexing the
// same document overwrites rather than duplicates.
type Chunk struct {
	ID        string `json:"id"`
	DocID     string `json:"docId"`
	PageStart int    `json:"pageStart"`
	PageEnd   int    `json:"pageEnd"`
	Index     int    `json:"chunkIndex"`
	Text      string `json:"text"`
}

// ChunkPages splits page texts into overlapping windows of roughly
// targetChars characters. Each page is appended as a marked block
// ("[p.N]\n<text>\n\n"); when a block would overflow the budget the buffer is
// flushed as a chunk and the next buffer is seeded with the trailing
// overlapChars characters of the previous one.
func ChunkPages(docID string, pages []Page, targetChars, overlapChars int) []Chunk {
	var results []Chunk

	buffer := ""
	rangeStart := 1
	if len(pages) > 0 {
		rangeStart = pages[0].Number
	}
	rangeEnd := rangeStart
	index := 0

	flush := func() {
		trimmed := strings.TrimSpace(buffer)
		if trimmed == "" {
			return
		}
		results = append(results, Chunk{
			ID:        fmt.Sprintf("%s-%d-%d-%d", docID, rangeStart, rangeEnd, index),
			DocID:     docID,
			PageStart: rangeStart,
			PageEnd:   rangeEnd,
			Index:     index,
			Text:      trimmed,
		})
		index++
	}

	for _, page := range pages {
		block := fmt.Sprintf("[p.%d]\n%s\n\n", page.Number, page.Text)
		if len(buffer)+len(block) > targetChars {
			flush()
			// Seed the next buffer with the tail of the previous one.
			start := len(buffer) - overlapChars
			if start < 0 {
				start = 0
			}
			buffer = buffer[start:] + block
			// rangeStart never moves backwards, even for zero-numbered pages.
			if rangeEnd > rangeStart {
				rangeStart = rangeEnd
			}
			rangeEnd = page.Number
		} else {
			buffer += block
			rangeEnd = page.Number
		}
	}

	flush()
	return results
}
