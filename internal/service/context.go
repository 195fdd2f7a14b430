package service

import (
	"fmt"
	"strings"

	"github.com/cloo-solutions/coverdraft/internal/domain"
)

const (
	styleSummaryTerms = 8
	charsPerToken     = 4
)

// ContextPayload is the text handed to the generator together with
// accounting of what was left out.
type ContextPayload struct {
	Text            string        `json:"text"`
	StyleSummary    string        `json:"style_summary,omitempty"`
	Chunks          []ScoredChunk `json:"chunks"`
	Dropped         int           `json:"dropped"`
	StyleTruncated  bool          `json:"style_truncated"`
	Size            int           `json:"size"`
	EstimatedTokens int           `json:"estimated_tokens"`
}

// AssembleContext renders the style summary followed by chunks in rank order
// and fits the result into budget runes. Chunks are dropped from the
// lowest-ranked end first; the style summary is only cut once no chunk
// remains. A non-positive budget disables the limit.
func AssembleContext(chunks []ScoredChunk, style *domain.AggregatedStyle, budget int) ContextPayload {
	ranked := make([]ScoredChunk, len(chunks))
	copy(ranked, chunks)
	SortScoredChunks(ranked)

	styleText := ""
	if !style.IsEmpty() {
		styleText = SummarizeStyle(style)
	}

	sections := make([]string, len(ranked))
	for i, c := range ranked {
		sections[i] = formatChunk(c)
	}

	kept := len(ranked)
	payload := ContextPayload{}
	text := joinContext(styleText, sections[:kept])
	for budget > 0 && runeLen(text) > budget && kept > 0 {
		kept--
		text = joinContext(styleText, sections[:kept])
	}
	if budget > 0 && runeLen(text) > budget {
		styleText = truncateRunes(styleText, budget)
		text = styleText
		payload.StyleTruncated = true
	}

	payload.Text = text
	payload.StyleSummary = styleText
	payload.Chunks = ranked[:kept]
	payload.Dropped = len(ranked) - kept
	payload.Size = runeLen(text)
	payload.EstimatedTokens = (payload.Size + charsPerToken - 1) / charsPerToken
	return payload
}

func formatChunk(c ScoredChunk) string {
	return fmt.Sprintf("[%s | weight %.2f | score %.3f]\n%s", c.DocumentType, c.Weight, c.Score, strings.TrimSpace(c.Content))
}

func joinContext(style string, chunks []string) string {
	parts := make([]string, 0, len(chunks)+1)
	if style != "" {
		parts = append(parts, style)
	}
	parts = append(parts, chunks...)
	return strings.Join(parts, "\n\n")
}

// SummarizeStyle renders an aggregated style profile as prompt guidance.
func SummarizeStyle(style *domain.AggregatedStyle) string {
	if style.IsEmpty() {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "WRITING STYLE (from %d cover letter", style.DocumentCount)
	if style.DocumentCount != 1 {
		b.WriteString("s")
	}
	b.WriteString("):\n")
	fmt.Fprintf(&b, "- Tone: enthusiasm %.2f, confidence %.2f, personal voice %.2f\n",
		style.Tone[domain.ToneEnthusiasm], style.Tone[domain.ToneConfidence], style.Tone[domain.TonePersonalVoice])
	fmt.Fprintf(&b, "- Formality: %.2f (0 casual, 1 formal)\n", style.Formality)
	fmt.Fprintf(&b, "- Average sentence length: %.1f words", style.AvgSentenceLength)
	writeTerms(&b, "Characteristic phrases", style.Phrases)
	writeTerms(&b, "Typical sentence openings", style.SentenceStarters)
	writeTerms(&b, "Preferred vocabulary", style.Vocabulary)
	return b.String()
}

func writeTerms(b *strings.Builder, label string, f domain.Frequencies) {
	ranked := RankFrequencies(f)
	if len(ranked) == 0 {
		return
	}
	if len(ranked) > styleSummaryTerms {
		ranked = ranked[:styleSummaryTerms]
	}
	terms := make([]string, len(ranked))
	for i, rt := range ranked {
		terms[i] = rt.Term
	}
	fmt.Fprintf(b, "\n- %s: %s", label, strings.Join(terms, ", "))
}

func runeLen(s string) int {
	return len([]rune(s))
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
