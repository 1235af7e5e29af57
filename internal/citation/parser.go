package citation

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Citation is one addressable page reference parsed out of generated text.
// For a range token like [p.3-5] the start page is the citation and EndPage
// keeps the range end for display.
type Citation struct {
	Page    int  `json:"page"`
	IsRange bool `json:"isRange,omitempty"`
	EndPage int  `json:"endPage,omitempty"`
}

// Result holds the prose with citation tokens stripped and the deduplicated,
// ascending set of page citations found in it.
type Result struct {
	CleanText string     `json:"cleanText"`
	Citations []Citation `json:"citations"`
}

// Matches [p.3], [p.3-5], [p.3, p.4], [p.3, 5-7, 9] and similar comma groups.
var tokenRe = regexp.MustCompile(`\[p\.\d+(?:\s*-\s*\d+)?(?:\s*,\s*(?:p\.)?\d+(?:\s*-\s*\d+)?)*\]`)

// Parse extracts every citation token from generated answer text. Duplicate
// page numbers collapse to one entry; when duplicates disagree on range
// metadata, the last token in text order wins.
func Parse(answer string) Result {
	byPage := make(map[int]Citation)

	for _, token := range tokenRe.FindAllString(answer, -1) {
		interior := strings.TrimSuffix(strings.TrimPrefix(token, "["), "]")
		for _, part := range strings.Split(interior, ",") {
			part = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(part), "p."))
			if part == "" {
				continue
			}

			if start, end, ok := parseRange(part); ok {
				byPage[start] = Citation{Page: start, IsRange: true, EndPage: end}
				continue
			}
			if page, err := strconv.Atoi(part); err == nil {
				byPage[page] = Citation{Page: page}
			}
		}
	}

	citations := make([]Citation, 0, len(byPage))
	for _, c := range byPage {
		citations = append(citations, c)
	}
	sort.Slice(citations, func(i, j int) bool { return citations[i].Page < citations[j].Page })

	return Result{
		CleanText: tokenRe.ReplaceAllString(answer, ""),
		Citations: citations,
	}
}

func parseRange(part string) (start, end int, ok bool) {
	left, right, found := strings.Cut(part, "-")
	if !found {
		return 0, 0, false
	}
	start, err1 := strconv.Atoi(strings.TrimSpace(left))
	end, err2 := strconv.Atoi(strings.TrimSpace(right))
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return start, end, true
}
