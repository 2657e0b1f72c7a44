package translate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subaddon/internal/srt"
)

type fakeClient struct {
	responses  []string
	outputCap  int
	callCount  int
	failNTimes int
}

func (f *fakeClient) Generate(ctx context.Context, model, prompt string) (GenerateResult, error) {
	idx := f.callCount
	f.callCount++
	if idx < len(f.responses) {
		return GenerateResult{Text: f.responses[idx]}, nil
	}
	return GenerateResult{Text: f.responses[len(f.responses)-1]}, nil
}

func (f *fakeClient) GenerateStream(ctx context.Context, model, prompt string, onDelta func(string)) (GenerateResult, error) {
	r, err := f.Generate(ctx, model, prompt)
	if onDelta != nil {
		onDelta(r.Text)
	}
	return r, err
}

func (f *fakeClient) OutputTokenCap(model string) int {
	if f.outputCap == 0 {
		return 8192
	}
	return f.outputCap
}

const sourceSRT = `1
00:00:01,000 --> 00:00:02,000
Hello there.

2
00:00:03,000 --> 00:00:04,000
General Kenobi.
`

func TestTranslate_SingleShotBelowThreshold(t *testing.T) {
	translated := `1
00:00:01,000 --> 00:00:02,000
Hola.

2
00:00:03,000 --> 00:00:04,000
General Kenobi (es).
`
	client := &fakeClient{responses: []string{translated}}
	engine := New(client)

	out, terr := engine.Translate(context.Background(), sourceSRT, "spa", Options{Model: "gemini-flash"}, nil)
	require.Nil(t, terr)
	entries := srt.Parse(out)
	assert.Len(t, entries, 2)
	assert.Equal(t, "Hola.", entries[0].Text)
}

func TestTranslate_SourceBelowMinimumIsInvalid(t *testing.T) {
	client := &fakeClient{responses: []string{"x"}}
	engine := New(client)
	_, terr := engine.Translate(context.Background(), "1\nshort", "spa", Options{Model: "m"}, nil)
	require.NotNil(t, terr)
	assert.Equal(t, "INVALID_SOURCE", string(terr.Type))
}

func TestTranslate_ProgressCalledWithFinalResult(t *testing.T) {
	translated := `1
00:00:01,000 --> 00:00:02,000
Hola.

2
00:00:03,000 --> 00:00:04,000
Kenobi general.
`
	client := &fakeClient{responses: []string{translated}}
	engine := New(client)

	var lastProgress string
	out, terr := engine.Translate(context.Background(), sourceSRT, "spa", Options{Model: "m"}, func(p string) {
		lastProgress = p
	})
	require.Nil(t, terr)
	assert.Equal(t, out, lastProgress)
}

func TestSplit_GreedyPacksWithinBudget(t *testing.T) {
	entries := srt.Parse(sourceSRT)
	chunks := Split(entries, 10000)
	assert.Len(t, chunks, 1)
	assert.Len(t, chunks[0].Entries, 2)
}

func TestSplit_OversizeEntryBecomesLoneChunk(t *testing.T) {
	big := make([]byte, 100)
	for i := range big {
		big[i] = 'a'
	}
	entries := []srt.Entry{
		{Index: 1, Text: "small"},
		{Index: 2, Text: string(big)},
	}
	chunks := Split(entries, 10)
	assert.GreaterOrEqual(t, len(chunks), 2)
}

func TestEvaluateMaxTokens_AcceptsPartialAboveThirtyPercent(t *testing.T) {
	accept, needsSmaller := evaluateMaxTokens(1000, 400)
	assert.True(t, accept)
	assert.False(t, needsSmaller)
}

func TestEvaluateMaxTokens_RejectsNearEmptyAndFlagsSmallerChunks(t *testing.T) {
	accept, needsSmaller := evaluateMaxTokens(1000, 10)
	assert.False(t, accept)
	assert.True(t, needsSmaller)
}
