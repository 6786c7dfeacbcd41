package citation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/raggo/model"
)

func windowWith(chunks ...model.Chunk) model.ContextWindow {
	w := model.ContextWindow{Budget: 2048}
	for _, c := range chunks {
		w.Chunks = append(w.Chunks, model.ContextChunk{Chunk: c})
		w.TokenCount += c.TokenCount
	}
	return w
}

func TestExtract_QuotedSpan(t *testing.T) {
	window := windowWith(model.Chunk{
		ID:         7,
		DocumentID: "contract-12",
		Text:       "Either party may terminate this agreement with 30 days written notice to the other party.",
		TokenCount: 16,
	})

	citations := New().Extract("The agreement can be terminated with 30 days written notice.", window)
	require.Len(t, citations, 1)

	c := citations[0]
	assert.Equal(t, model.ChunkID(7), c.ChunkID)
	assert.True(t, c.Verified)
	assert.GreaterOrEqual(t, c.Confidence, float32(0.95))

	// The source span must point inside the chunk text.
	runes := []rune(window.Chunks[0].Text)
	require.True(t, c.SourceSpan.Valid())
	assert.GreaterOrEqual(t, c.SourceSpan.Start, 0)
	assert.LessOrEqual(t, c.SourceSpan.End, len(runes))
	assert.Contains(t, string(runes[c.SourceSpan.Start:c.SourceSpan.End]), "30 days")
}

func TestExtract_ParaphraseMatchesByTerms(t *testing.T) {
	window := windowWith(model.Chunk{
		ID:   3,
		Text: "The security deposit equals two months of rent and is refundable at move-out.",
	})

	citations := New().Extract("Tenants get the security deposit refunded when they move out.", window)
	require.Len(t, citations, 1)
	assert.Equal(t, model.ChunkID(3), citations[0].ChunkID)
	assert.Greater(t, citations[0].Confidence, float32(0))
}

func TestExtract_UnverifiedKept(t *testing.T) {
	window := windowWith(model.Chunk{
		ID:   1,
		Text: "The quarterly report covers revenue growth in the APAC region.",
	})

	citations := New().Extract("Penguins primarily inhabit the southern hemisphere coastline.", window)
	require.Len(t, citations, 1)
	assert.False(t, citations[0].Verified)
	assert.Less(t, citations[0].Confidence, float32(0.72))
}

func TestExtract_PerSentenceCitations(t *testing.T) {
	window := windowWith(
		model.Chunk{ID: 1, Text: "Either party may terminate this agreement with 30 days written notice."},
		model.Chunk{ID: 2, Text: "The security deposit equals two months of rent."},
	)

	answer := "The agreement may terminate with 30 days written notice. The security deposit equals two months of rent."
	citations := New().Extract(answer, window)
	require.Len(t, citations, 2)

	assert.Equal(t, model.ChunkID(1), citations[0].ChunkID)
	assert.Equal(t, model.ChunkID(2), citations[1].ChunkID)

	// Citations come back ordered by answer span.
	assert.Less(t, citations[0].AnswerSpan.Start, citations[1].AnswerSpan.Start)
	assert.True(t, citations[1].Verified)
}

func TestExtract_SkipsShortSentences(t *testing.T) {
	window := windowWith(model.Chunk{ID: 1, Text: "Either party may terminate this agreement."})

	// "Sure." carries no content terms and must not produce a citation.
	citations := New().Extract("Sure. Either party may terminate this agreement.", window)
	require.Len(t, citations, 1)
	assert.Equal(t, model.ChunkID(1), citations[0].ChunkID)
}

func TestExtract_ThresholdOption(t *testing.T) {
	window := windowWith(model.Chunk{ID: 1, Text: "Either party may terminate this agreement with notice."})

	strict := New(func(o *Options) {
		o.GroundingThreshold = 0.999
	})
	citations := strict.Extract("A party may terminate the agreement after giving notice.", window)
	require.Len(t, citations, 1)
	assert.False(t, citations[0].Verified)
}

func TestExtract_EmptyInputs(t *testing.T) {
	window := windowWith(model.Chunk{ID: 1, Text: "some text"})

	assert.Nil(t, New().Extract("", window))
	assert.Nil(t, New().Extract("An answer with several words.", model.ContextWindow{}))
}
