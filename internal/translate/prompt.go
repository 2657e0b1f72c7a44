package translate

import (
	"fmt"
	"strings"

	"subaddon/internal/srt"
)

// BuildPrompt renders a chunk into an instruction that clearly separates
// DO-NOT-TRANSLATE context from the TRANSLATE-ONLY body,
// step 3.
func BuildPrompt(chunk Chunk, targetLanguage string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Translate the subtitle entries below into %s.\n", targetLanguage)
	b.WriteString("Preserve the numeric index and timecode of every TRANSLATE-ONLY entry exactly.\n")
	b.WriteString("Return only the translated SRT block for the TRANSLATE-ONLY entries, nothing else.\n\n")

	if len(chunk.Before) > 0 {
		b.WriteString("=== DO-NOT-TRANSLATE CONTEXT (BEFORE) ===\n")
		b.WriteString(srt.ToSRT(chunk.Before))
		b.WriteString("\n")
	}

	b.WriteString("=== TRANSLATE-ONLY ===\n")
	b.WriteString(srt.ToSRT(chunk.Entries))
	b.WriteString("\n")

	if len(chunk.After) > 0 {
		b.WriteString("=== DO-NOT-TRANSLATE CONTEXT (AFTER) ===\n")
		b.WriteString(srt.ToSRT(chunk.After))
	}

	return b.String()
}
