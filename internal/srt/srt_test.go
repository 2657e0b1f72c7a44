package srt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const sample = `1
00:00:01,000 --> 00:00:02,500
Hello there.

2
00:00:03,000 --> 00:00:04,000
General Kenobi.
`

func TestParse_BasicTwoEntries(t *testing.T) {
	entries := Parse(sample)
	assert.Len(t, entries, 2)
	assert.Equal(t, 1, entries[0].Index)
	assert.Equal(t, "Hello there.", entries[0].Text)
	assert.Equal(t, 2, entries[1].Index)
	assert.Equal(t, time.Second*3, entries[1].Start)
}

func TestParse_DropsBlockWithoutTimecode(t *testing.T) {
	text := sample + "\n3\nNo timecode here\nJust text\n"
	entries := Parse(text)
	assert.Len(t, entries, 2)
}

func TestParse_StripsInlineTimecodesFromText(t *testing.T) {
	text := "1\n00:00:01,000 --> 00:00:02,000\n00:00:01,500 --> 00:00:01,800 stray\nReal text\n"
	entries := Parse(text)
	assert.Len(t, entries, 1)
	assert.NotContains(t, entries[0].Text, "-->")
}

func TestParseThenToSRTThenParse_Idempotent(t *testing.T) {
	first := Parse(sample)
	second := Parse(ToSRT(first))
	assert.Equal(t, first, second)
}

func TestReindex_StrictlyIncreasing(t *testing.T) {
	entries := []Entry{{Index: 9}, {Index: 2}, {Index: 100}}
	Reindex(entries)
	assert.Equal(t, 1, entries[0].Index)
	assert.Equal(t, 2, entries[1].Index)
	assert.Equal(t, 3, entries[2].Index)
}

func TestSentinel_SpansFourHours(t *testing.T) {
	out := Sentinel("loading")
	entries := Parse(out)
	assert.Len(t, entries, 1)
	assert.Equal(t, time.Duration(0), entries[0].Start)
	assert.Equal(t, 4*time.Hour, entries[0].End)
	assert.Equal(t, "loading", entries[0].Text)
}

func TestAppendProgressTail_StartsFromLastEnd(t *testing.T) {
	entries := Parse(sample)
	withTail := AppendProgressTail(entries, "TRANSLATION IN PROGRESS")
	assert.Len(t, withTail, 3)
	assert.Equal(t, entries[len(entries)-1].End, withTail[2].Start)
	assert.Equal(t, 4*time.Hour, withTail[2].End)
}

func TestNormalize_StripsCodeFenceAndCRLF(t *testing.T) {
	text := "```srt\r\n1\r\n00:00:01,000 --> 00:00:02,000\r\nHi\r\n```"
	normalized := Normalize(text)
	assert.NotContains(t, normalized, "```")
	assert.NotContains(t, normalized, "\r")
}
