package domain

// Tone dimensions scored by style extraction. Each score lies in [0, 1].
const (
	ToneEnthusiasm    = "enthusiasm"
	ToneConfidence    = "confidence"
	TonePersonalVoice = "personal_voice"
)

// Frequencies is a sparse token → count mapping.
type Frequencies map[string]float64

// StyleProfile holds writing-style features extracted from one document.
type StyleProfile struct {
	Vocabulary        Frequencies        `json:"vocabulary"`
	Phrases           Frequencies        `json:"phrases"`
	SentenceStarters  Frequencies        `json:"sentence_starters"`
	Tone              map[string]float64 `json:"tone"`
	Formality         float64            `json:"formality"`
	AvgSentenceLength float64            `json:"avg_sentence_length"`
	SentenceCount     int                `json:"sentence_count"`
	WordCount         int                `json:"word_count"`
}

// AggregatedStyle is a StyleProfile merged across several cover letters,
// weighted toward the most recent. It is computed per request and never stored.
type AggregatedStyle struct {
	Vocabulary        Frequencies        `json:"vocabulary"`
	Phrases           Frequencies        `json:"phrases"`
	SentenceStarters  Frequencies        `json:"sentence_starters"`
	Tone              map[string]float64 `json:"tone"`
	Formality         float64            `json:"formality"`
	AvgSentenceLength float64            `json:"avg_sentence_length"`
	DocumentCount     int                `json:"document_count"`
	SourceIDs         []string           `json:"source_ids"`
}

// NewEmptyAggregatedStyle returns the neutral profile used when no cover
// letters are available. It imposes no style constraint.
func NewEmptyAggregatedStyle() *AggregatedStyle {
	return &AggregatedStyle{
		Vocabulary:       Frequencies{},
		Phrases:          Frequencies{},
		SentenceStarters: Frequencies{},
		Tone:             map[string]float64{},
		SourceIDs:        []string{},
	}
}

// IsEmpty reports whether no document contributed to the profile.
func (s *AggregatedStyle) IsEmpty() bool {
	return s == nil || s.DocumentCount == 0
}
