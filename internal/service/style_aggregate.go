package service

import (
	"sort"

	"github.com/cloo-solutions/coverdraft/internal/domain"
)

// WeightedFrequencies is one input to WeightedMerge.
type WeightedFrequencies struct {
	Weight float64
	Counts domain.Frequencies
}

// WeightedMerge sums weight*count per token across sources. With normalize
// set, the result is scaled to sum to 1; an all-zero result stays empty.
func WeightedMerge(sources []WeightedFrequencies, normalize bool) domain.Frequencies {
	out := domain.Frequencies{}
	for _, src := range sources {
		if src.Weight <= 0 {
			continue
		}
		for tok, c := range src.Counts {
			out[tok] += src.Weight * c
		}
	}
	if !normalize {
		return out
	}
	var total float64
	for _, v := range out {
		total += v
	}
	if total <= 0 {
		return domain.Frequencies{}
	}
	for tok, v := range out {
		out[tok] = v / total
	}
	return out
}

// AggregateStyle merges the style profiles of cover letters, favouring the
// most recent. Other document types are ignored. With no eligible document
// the neutral, empty profile is returned.
func AggregateStyle(docs []*domain.Document) *domain.AggregatedStyle {
	letters := make([]*domain.Document, 0, len(docs))
	for _, d := range docs {
		if d != nil && d.Type == domain.DocumentTypeCoverLetter && d.Style != nil {
			letters = append(letters, d)
		}
	}
	agg := domain.NewEmptyAggregatedStyle()
	if len(letters) == 0 {
		return agg
	}

	sort.SliceStable(letters, func(i, j int) bool {
		a, b := letters[i], letters[j]
		if !a.CanonicalDate.Equal(b.CanonicalDate) {
			return a.CanonicalDate.After(b.CanonicalDate)
		}
		if !a.IngestedAt.Equal(b.IngestedAt) {
			return a.IngestedAt.After(b.IngestedAt)
		}
		return a.ID < b.ID
	})

	n := len(letters)
	vocab := make([]WeightedFrequencies, n)
	phrases := make([]WeightedFrequencies, n)
	starters := make([]WeightedFrequencies, n)
	var totalWeight, formality, sentenceLen float64
	tone := map[string]float64{}

	for i, d := range letters {
		w := float64(max(1, n-i))
		s := d.Style
		vocab[i] = WeightedFrequencies{Weight: w, Counts: s.Vocabulary}
		phrases[i] = WeightedFrequencies{Weight: w, Counts: s.Phrases}
		starters[i] = WeightedFrequencies{Weight: w, Counts: s.SentenceStarters}
		for k, v := range s.Tone {
			tone[k] += w * v
		}
		formality += w * s.Formality
		sentenceLen += w * s.AvgSentenceLength
		totalWeight += w
		agg.SourceIDs = append(agg.SourceIDs, d.ID)
	}

	agg.Vocabulary = WeightedMerge(vocab, true)
	agg.Phrases = WeightedMerge(phrases, true)
	agg.SentenceStarters = WeightedMerge(starters, true)
	for k, v := range tone {
		agg.Tone[k] = v / totalWeight
	}
	agg.Formality = formality / totalWeight
	agg.AvgSentenceLength = sentenceLen / totalWeight
	agg.DocumentCount = n
	return agg
}
