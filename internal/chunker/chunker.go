// Package chunker cuts page text into overlapping fixed-size passages.
package chunker

import (
	"errors"
	"unicode"

	"github.com/jagadeepmamidi/sahay-ai/internal/model"
	"github.com/jagadeepmamidi/sahay-ai/pkg/pdfdoc"
)

// Chunker splits page text into character windows of at most size runes,
// where consecutive windows on a page share exactly overlap runes.
type Chunker struct {
	size    int
	overlap int
}

// New validates the configuration and returns a Chunker.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, errors.New("chunk size must be positive")
	}
	if overlap < 0 {
		return nil, errors.New("chunk overlap must not be negative")
	}
	if overlap >= size {
		return nil, errors.New("chunk overlap must be smaller than chunk size")
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Split cuts every page of the document into passages. Pages are chunked
// independently; passage indexes are sequential across the whole document.
func (c *Chunker) Split(docID string, pages []pdfdoc.Page) []model.Passage {
	var passages []model.Passage
	index := 0
	for _, page := range pages {
		for _, cut := range c.splitPage(page.Text) {
			passages = append(passages, model.Passage{
				DocID:   docID,
				Page:    page.Number,
				Index:   index,
				Text:    cut.text,
				Overlap: cut.overlap,
			})
			index++
		}
	}
	return passages
}

type cut struct {
	text    string
	overlap int
}

// splitPage greedily cuts the text into windows. The window end prefers
// the last whitespace inside a bounded backtrack so passages tend to end
// on word boundaries; the next window starts overlap runes before the
// chosen end, so adjacent passages share exactly overlap characters.
func (c *Chunker) splitPage(text string) []cut {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var cuts []cut
	start := 0
	for {
		end := start + c.size
		if end >= len(runes) {
			cuts = append(cuts, cut{text: string(runes[start:]), overlap: c.prevOverlap(len(cuts))})
			return cuts
		}

		end = c.preferBoundary(runes, start, end)
		cuts = append(cuts, cut{text: string(runes[start:end]), overlap: c.prevOverlap(len(cuts))})
		start = end - c.overlap
	}
}

func (c *Chunker) prevOverlap(chunkCount int) int {
	if chunkCount == 0 {
		return 0
	}
	return c.overlap
}

// preferBoundary moves the cut point back to the last whitespace within a
// bounded window, keeping the passage long enough that the next window
// still advances. Hard cut when no whitespace is found.
func (c *Chunker) preferBoundary(runes []rune, start, end int) int {
	limit := end - c.overlap
	if min := start + c.overlap + 1; limit < min {
		limit = min
	}
	for j := end; j > limit; j-- {
		if unicode.IsSpace(runes[j-1]) {
			return j
		}
	}
	return end
}
