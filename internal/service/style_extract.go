package service

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/cloo-solutions/coverdraft/internal/domain"
)

const (
	maxVocabularyTerms = 50
	maxPhrases         = 30
	maxStarters        = 20
)

var (
	styleTokenPattern    = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceSplitPattern = regexp.MustCompile(`[.!?]+`)
)

var (
	enthusiasmMarkers = markerSet("excited", "passionate", "thrilled", "delighted", "enthusiastic", "eager", "love", "keen")
	confidenceMarkers = markerSet("confident", "proven", "successfully", "achieved", "delivered", "expert",
		"developed", "implemented", "managed", "led", "created", "designed", "built", "improved")
	formalMarkers   = markerSet("therefore", "furthermore", "moreover", "consequently", "subsequently", "sincerely", "respectfully", "regards", "hereby")
	informalMarkers = markerSet("hey", "hi", "awesome", "cool", "stuff", "really", "thanks", "gonna", "pretty")
	personalMarkers = markerSet("i", "me", "my", "mine", "myself")
)

func markerSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// ExtractStyle derives a writing-style profile from document text. The
// result depends only on the text.
func ExtractStyle(content string) *domain.StyleProfile {
	profile := &domain.StyleProfile{
		Vocabulary:       domain.Frequencies{},
		Phrases:          domain.Frequencies{},
		SentenceStarters: domain.Frequencies{},
		Tone: map[string]float64{
			domain.ToneEnthusiasm:    0,
			domain.ToneConfidence:    0,
			domain.TonePersonalVoice: 0,
		},
		Formality: 0.5,
	}

	var sentences [][]string
	for _, s := range sentenceSplitPattern.Split(content, -1) {
		if toks := tokenize(s); len(toks) > 0 {
			sentences = append(sentences, toks)
		}
	}
	if len(sentences) == 0 {
		return profile
	}

	var enthusiasm, confidence, formal, informal, personal, contractions int
	words := 0
	for _, toks := range sentences {
		words += len(toks)
		if len(toks) >= 2 {
			profile.SentenceStarters[toks[0]+" "+toks[1]]++
		}
		for i, tok := range toks {
			if strings.ContainsAny(tok, "'’") {
				contractions++
			}
			if _, ok := enthusiasmMarkers[tok]; ok {
				enthusiasm++
			}
			if _, ok := confidenceMarkers[tok]; ok {
				confidence++
			}
			if _, ok := formalMarkers[tok]; ok {
				formal++
			}
			if _, ok := informalMarkers[tok]; ok {
				informal++
			}
			if _, ok := personalMarkers[tok]; ok {
				personal++
			}
			if !isStopword(tok) && len([]rune(tok)) >= 3 {
				profile.Vocabulary[tok]++
			}
			for n := 2; n <= 3 && i+n <= len(toks); n++ {
				gram := toks[i : i+n]
				if isStopword(gram[0]) || isStopword(gram[n-1]) {
					continue
				}
				profile.Phrases[strings.Join(gram, " ")]++
			}
		}
	}

	n := float64(len(sentences))
	profile.SentenceCount = len(sentences)
	profile.WordCount = words
	profile.AvgSentenceLength = float64(words) / n
	profile.Tone[domain.ToneEnthusiasm] = math.Min(1, float64(enthusiasm)/n)
	profile.Tone[domain.ToneConfidence] = math.Min(1, float64(confidence)/n)
	profile.Tone[domain.TonePersonalVoice] = math.Min(1, float64(personal)*10/float64(words))
	informal += contractions
	profile.Formality = float64(formal+1) / float64(formal+informal+2)

	profile.Vocabulary = topFrequencies(profile.Vocabulary, maxVocabularyTerms)
	profile.Phrases = topFrequencies(profile.Phrases, maxPhrases)
	profile.SentenceStarters = topFrequencies(profile.SentenceStarters, maxStarters)
	return profile
}

func tokenize(s string) []string {
	return styleTokenPattern.FindAllString(strings.ToLower(s), -1)
}

// RankedTerm is one entry of a frequency map in ranked order.
type RankedTerm struct {
	Term  string
	Count float64
}

// RankFrequencies orders terms by count descending, then term ascending.
func RankFrequencies(f domain.Frequencies) []RankedTerm {
	out := make([]RankedTerm, 0, len(f))
	for k, v := range f {
		out = append(out, RankedTerm{Term: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Term < out[j].Term
	})
	return out
}

func topFrequencies(f domain.Frequencies, limit int) domain.Frequencies {
	if len(f) <= limit {
		return f
	}
	out := make(domain.Frequencies, limit)
	for _, rt := range RankFrequencies(f)[:limit] {
		out[rt.Term] = rt.Count
	}
	return out
}

var stopwords = markerSet(
	"a", "about", "after", "all", "also", "am", "an", "and", "any", "are", "as", "at",
	"be", "been", "before", "being", "both", "but", "by", "can", "could", "did", "do",
	"does", "for", "from", "had", "has", "have", "he", "her", "here", "him", "his",
	"how", "i", "if", "in", "into", "is", "it", "its", "i'm", "i've", "me", "more",
	"most", "my", "no", "not", "of", "on", "or", "other", "our", "out", "over", "she",
	"so", "some", "such", "than", "that", "the", "their", "them", "then", "there",
	"these", "they", "this", "those", "through", "to", "too", "up", "us", "very",
	"was", "we", "were", "what", "when", "where", "which", "while", "who", "will",
	"with", "would", "you", "your",
)

func isStopword(tok string) bool {
	_, ok := stopwords[tok]
	return ok
}
