package service

import (
	"strings"
	"unicode"
)

// ChunkConfig controls how document text is split before embedding.
type ChunkConfig struct {
	MaxChars  int
	MinChars  int
	Overlap   int
	MaxChunks int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxChars:  500,
		MinChars:  200,
		Overlap:   100,
		MaxChunks: 200,
	}
}

// ChunkText splits text into overlapping rune windows. Within the last
// MaxChars-MinChars runes of a window it cuts at a paragraph break if there
// is one, else after a sentence or line, else on whitespace, else mid-word.
// Short text yields a single chunk; blank text yields none.
func ChunkText(text string, cfg ChunkConfig) []string {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return nil
	}
	if cfg.MaxChars <= 0 {
		cfg = DefaultChunkConfig()
	}
	runes := []rune(clean)
	if len(runes) <= cfg.MaxChars {
		return []string{clean}
	}

	chunks := make([]string, 0, len(runes)/cfg.MaxChars+1)
	start := 0
	for start < len(runes) {
		if cfg.MaxChunks > 0 && len(chunks) >= cfg.MaxChunks {
			break
		}

		end := min(start+cfg.MaxChars, len(runes))

		if end < len(runes) {
			end = bestCut(runes, start, end, cfg.MinChars)
		}

		if end <= start {
			break
		}

		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end >= len(runes) {
			break
		}

		nextStart := end
		if cfg.Overlap > 0 && end-start > cfg.Overlap {
			nextStart = end - cfg.Overlap
			// Start the next window on a word boundary.
			for nextStart < end && !unicode.IsSpace(runes[nextStart-1]) {
				nextStart++
			}
		}
		if nextStart <= start {
			nextStart = end
		}
		start = nextStart
	}

	return chunks
}

const (
	cutNone = iota
	cutSpace
	cutSentence
	cutParagraph
)

// bestCut returns the latest cut in (start+minChars, end] of the highest rank.
func bestCut(runes []rune, start, end, minChars int) int {
	minCut := start + minChars
	if minCut > end {
		minCut = start
	}
	best, bestRank := end, cutNone
	for i := end; i > minCut; i-- {
		if r := cutRank(runes, i); r > bestRank {
			best, bestRank = i, r
			if r == cutParagraph {
				break
			}
		}
	}
	return best
}

// cutRank rates cutting between runes[i-1] and runes[i].
func cutRank(runes []rune, i int) int {
	prev := runes[i-1]
	if !unicode.IsSpace(prev) {
		return cutNone
	}
	if i >= 2 {
		before := runes[i-2]
		switch {
		case prev == '\n' && before == '\n':
			return cutParagraph
		case prev == '\n', before == '.', before == '!', before == '?', before == ';':
			return cutSentence
		}
	}
	return cutSpace
}
