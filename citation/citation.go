// Package citation maps generated answer text back onto literal spans of the
// context chunks that produced it.
//
// For each answer sentence, every context chunk is scanned for the best
// grounding span. Two complementary signals feed the match confidence:
//
//   - span similarity: the longest common substring between sentence and
//     chunk anchors a window in the chunk; confidence is the normalized edit
//     similarity between the sentence and that window. This captures quoted
//     or lightly edited spans.
//   - term recall: the fraction of the sentence's content terms present in
//     the chunk (with fuzzy token equality). This captures paraphrased
//     claims whose wording diverges from the source.
//
// The final confidence is the maximum of the two. Sentences with no match at
// or above the grounding threshold are annotated as unverified rather than
// dropped, so callers can always distinguish grounded from ungrounded claims.
// The threshold is policy, not algorithm: it is configurable and defaults to
// DefaultOptions.GroundingThreshold.
//
// The extractor never modifies answer text; it only annotates it.
package citation

import (
	"github.com/hupe1980/raggo/internal/text"
	"github.com/hupe1980/raggo/model"
)

// Options represents the options for citation extraction.
type Options struct {
	// GroundingThreshold is the minimum confidence for a citation to be
	// marked verified.
	GroundingThreshold float64

	// MinSentenceTerms skips sentences with fewer content terms than this
	// (greetings, connectives) entirely.
	MinSentenceTerms int
}

// DefaultOptions are the recommended defaults. The 0.72 threshold tolerates
// roughly a quarter of the sentence being rephrased before a claim is
// downgraded to unverified.
var DefaultOptions = Options{
	GroundingThreshold: 0.72,
	MinSentenceTerms:   2,
}

// Extractor locates grounding spans for generated answers.
type Extractor struct {
	opts Options
}

// New creates a new Extractor.
func New(optFns ...func(o *Options)) *Extractor {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Extractor{opts: opts}
}

// Extract annotates the answer with one citation per factual sentence. The
// returned citations are ordered by answer span.
func (e *Extractor) Extract(answer string, window model.ContextWindow) []model.Citation {
	if answer == "" || window.Empty() {
		return nil
	}

	answerRunes := []rune(answer)
	var citations []model.Citation

	for _, span := range text.Sentences(answer) {
		sentence := string(answerRunes[span.Start:span.End])
		terms := text.Terms(sentence)
		if len(terms) < e.opts.MinSentenceTerms {
			continue
		}

		best, found := e.bestMatch(sentence, terms, window)
		if !found {
			continue
		}

		best.AnswerSpan = model.CharRange{Start: span.Start, End: span.End}
		best.Verified = float64(best.Confidence) >= e.opts.GroundingThreshold
		citations = append(citations, best)
	}

	return citations
}

// bestMatch scans every chunk in the window and returns the citation with the
// highest confidence. Ties go to the earlier chunk in window order.
func (e *Extractor) bestMatch(sentence string, terms []string, window model.ContextWindow) (model.Citation, bool) {
	var best model.Citation
	found := false

	for _, chunk := range window.Chunks {
		span, confidence := matchChunk(sentence, terms, chunk.Text)
		if !found || confidence > best.Confidence {
			best = model.Citation{
				ChunkID:    chunk.ID,
				SourceSpan: span,
				Confidence: confidence,
			}
			found = true
		}
	}
	return best, found
}

// matchChunk computes the best source span and confidence for one sentence
// against one chunk text. The span is rune-offset based into the chunk text.
func matchChunk(sentence string, terms []string, chunkText string) (model.CharRange, float32) {
	sentRunes := []rune(sentence)
	chunkRunes := []rune(chunkText)
	if len(sentRunes) == 0 || len(chunkRunes) == 0 {
		return model.CharRange{}, 0
	}

	// Anchor a window of sentence length around the longest common
	// substring, then measure edit similarity between sentence and window.
	_, ci, length := text.LongestCommonSubstring(sentence, chunkText)
	span := model.CharRange{Start: ci, End: min(ci+length, len(chunkRunes))}

	var spanSim float64
	if length > 0 {
		lo := ci
		hi := min(len(chunkRunes), ci+len(sentRunes))
		spanSim = text.Similarity(sentence, string(chunkRunes[lo:hi]))
		if hi > lo {
			span = model.CharRange{Start: lo, End: hi}
		}
	}

	recall, termSpan := termRecall(terms, chunkRunes)
	confidence := spanSim
	if recall > confidence {
		confidence = recall
		if termSpan.Valid() {
			span = termSpan
		}
	}

	if !span.Valid() {
		span = model.CharRange{Start: 0, End: min(len(sentRunes), len(chunkRunes))}
	}
	return span, float32(confidence)
}

// termRecall returns the fraction of sentence content terms found in the
// chunk and the span covering the matched occurrences.
func termRecall(terms []string, chunkRunes []rune) (float64, model.CharRange) {
	if len(terms) == 0 {
		return 0, model.CharRange{}
	}

	chunkTokens := tokenSpans(chunkRunes)
	matched := 0
	lo, hi := -1, -1

	for _, term := range terms {
		for _, tok := range chunkTokens {
			if text.TokenEquals(term, tok.text) {
				matched++
				if lo == -1 || tok.start < lo {
					lo = tok.start
				}
				if tok.end > hi {
					hi = tok.end
				}
				break
			}
		}
	}

	if matched == 0 {
		return 0, model.CharRange{}
	}
	return float64(matched) / float64(len(terms)), model.CharRange{Start: lo, End: hi}
}

type tokenSpan struct {
	text  string
	start int
	end   int
}

// tokenSpans tokenizes chunk runes while keeping rune offsets.
func tokenSpans(runes []rune) []tokenSpan {
	var spans []tokenSpan
	i := 0
	for i < len(runes) {
		for i < len(runes) && !isWordRune(runes[i]) {
			i++
		}
		start := i
		for i < len(runes) && isWordRune(runes[i]) {
			i++
		}
		if i > start {
			spans = append(spans, tokenSpan{
				text:  string(toLower(runes[start:i])),
				start: start,
				end:   i,
			})
		}
	}
	return spans
}

func isWordRune(r rune) bool {
	return r == '-' || r == '\'' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') ||
		r > 127
}

func toLower(runes []rune) []rune {
	out := make([]rune, len(runes))
	for i, r := range runes {
		if r >= 'A' && r <= 'Z' {
			out[i] = r + ('a' - 'A')
		} else {
			out[i] = r
		}
	}
	return out
}
