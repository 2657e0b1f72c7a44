// Package srt parses and serializes SubRip subtitle text. It underlies the
// Translation Engine's chunking/reassembly and the Orchestrator's
// partial-cache reindexing discipline.
package srt

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Entry is one SRT cue.
type Entry struct {
	Index int
	Start time.Duration
	End time.Duration
	Text string
}

var (
	reBlankSplit = regexp.MustCompile(`\r\n\r\n|\n\n`)
	reTimecode = regexp.MustCompile(`(\d{2}):(\d{2}):(\d{2})[,.](\d{3})\s*-->\s*(\d{2}):(\d{2}):(\d{2})[,.](\d{3})`)
	reInlineTime = regexp.MustCompile(`\d{2}:\d{2}:\d{2}[,.]\d{3}\s*-->\s*\d{2}:\d{2}:\d{2}[,.]\d{3}`)
)

// Parse splits SRT text into entries. Blocks that have no parseable
// timecode are skipped rather than erroring: the engine must tolerate
// partially-formed model output.
func Parse(text string) []Entry {
	normalized := Normalize(text)
	blocks := reBlankSplit.Split(strings.TrimSpace(normalized), -1)

	entries := make([]Entry, 0, len(blocks))
	for _, block := range blocks {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		lines := strings.Split(block, "\n")

		timecodeLineIdx := -1
		for i, l := range lines {
			if reTimecode.MatchString(l) {
				timecodeLineIdx = i
				break
			}
		}
		if timecodeLineIdx == -1 {
			continue
		}

		m := reTimecode.FindStringSubmatch(lines[timecodeLineIdx])
		start := toDuration(m[1], m[2], m[3], m[4])
		end := toDuration(m[5], m[6], m[7], m[8])

		textLines := lines[timecodeLineIdx+1:]
		rawText := strings.TrimSpace(strings.Join(textLines, "\n"))
		rawText = reInlineTime.ReplaceAllString(rawText, "")
		rawText = strings.TrimSpace(rawText)
		if rawText == "" {
			continue
		}

		entries = append(entries, Entry{Start: start, End: end, Text: rawText})
	}

	return Reindex(entries)
}

// Reindex assigns a strictly increasing 1..N index to entries in order,
// discarding their prior indices.
func Reindex(entries []Entry) []Entry {
	for i := range entries {
		entries[i].Index = i + 1
	}
	return entries
}

// ToSRT serializes entries back to SRT text, CRLF-free (LF line endings).
func ToSRT(entries []Entry) string {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", e.Index, formatTimecode(e.Start), formatTimecode(e.End), e.Text)
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

// Normalize strips model code-fence wrappers, normalizes CRLF/CR to LF, and
// trims — the output-cleanup step applied to every translation result.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = stripCodeFences(text)
	return strings.TrimSpace(text)
}

func stripCodeFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return text
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return text
	}
	lines = lines[1:]
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

func toDuration(h, m, s, ms string) time.Duration {
	hh, _ := strconv.Atoi(h)
	mm, _ := strconv.Atoi(m)
	ss, _ := strconv.Atoi(s)
	msms, _ := strconv.Atoi(ms)
	return time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute +
		time.Duration(ss)*time.Second + time.Duration(msms)*time.Millisecond
}

func formatTimecode(d time.Duration) string {
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second
	ms := d / time.Millisecond
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// Sentinel builds a synthesized single-cue SRT spanning the whole 4-hour
// timeline, used for loading/limit/error/invalid-source states.
func Sentinel(text string) string {
	entries := []Entry{{
		Index: 1,
		Start: 0,
		End: 4 * time.Hour,
		Text: text,
	}}
	return ToSRT(entries)
}

// AppendProgressTail appends one sentinel trailing cue, running from the
// last parsed entry's end time to the 4-hour mark, signaling that the
// translation is still in progress.
func AppendProgressTail(entries []Entry, text string) []Entry {
	start := time.Duration(0)
	if len(entries) > 0 {
		start = entries[len(entries)-1].End
	}
	tail := Entry{Start: start, End: 4 * time.Hour, Text: text}
	out := make([]Entry, len(entries), len(entries)+1)
	copy(out, entries)
	out = append(out, tail)
	return Reindex(out)
}
