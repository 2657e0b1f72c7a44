package provider

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/nwaples/rardecode/v2"
)

// MaxArchiveBytes bounds how large an archive a provider will decompress
// before refusing with the oversize sentinel (≈25 MiB).
const MaxArchiveBytes = 25 * 1024 * 1024

var (
	magicZip  = []byte("PK\x03\x04")
	magicGzip = []byte{0x1f, 0x8b}
	magicRar4 = []byte("Rar!\x1a\x07\x00")
	magicRar5 = []byte("Rar!\x1a\x07\x01\x00")
	magic7z   = []byte{'7', 'z', 0xBC, 0xAF, 0x27, 0x1C}
)

// ErrArchiveTooLarge signals the provider layer should return the oversize
// sentinel instead of attempting extraction.
var ErrArchiveTooLarge = errors.New("archive exceeds maximum allowed size")

// ErrNoSubtitleInArchive signals no .srt/.vtt/.ass/.ssa member was found.
var ErrNoSubtitleInArchive = errors.New("no subtitle file found in archive")

// IsArchive detects ZIP, RAR, Gzip, and 7z payloads by magic bytes.
func IsArchive(data []byte) bool {
	return bytes.HasPrefix(data, magicZip) ||
		bytes.HasPrefix(data, magicGzip) ||
		bytes.HasPrefix(data, magicRar4) ||
		bytes.HasPrefix(data, magicRar5) ||
		bytes.HasPrefix(data, magic7z)
}

// ExtractSubtitle detects the archive format by magic bytes and returns the
// decoded text of the first subtitle member found, preferring .srt, then
// falling back to .vtt (preserved verbatim) or .ass/.ssa (converted to SRT).
func ExtractSubtitle(data []byte) (string, error) {
	if len(data) > MaxArchiveBytes {
		return "", ErrArchiveTooLarge
	}

	switch {
	case bytes.HasPrefix(data, magicZip):
		return extractZip(data)
	case bytes.HasPrefix(data, magicRar4), bytes.HasPrefix(data, magicRar5):
		return extractRar(data)
	case bytes.HasPrefix(data, magic7z):
		return extractSevenZip(data)
	case bytes.HasPrefix(data, magicGzip):
		return extractGzip(data)
	}
	// Bare tar has no reliable magic prefix at offset 0; try it as a last
	// resort since callers only invoke ExtractSubtitle when some non-plain
	// content was suspected.
	if text, err := extractTar(bytes.NewReader(data)); err == nil {
		return text, nil
	}
	return "", ErrNoSubtitleInArchive
}

func extractZip(data []byte) (string, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("zip: %w", err)
	}
	best := pickBestMember(zipNames(r.File))
	if best == "" {
		return "", ErrNoSubtitleInArchive
	}
	for _, f := range r.File {
		if f.Name != best {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("zip open %s: %w", f.Name, err)
		}
		defer rc.Close()
		content, err := io.ReadAll(io.LimitReader(rc, MaxArchiveBytes))
		if err != nil {
			return "", err
		}
		return convertIfNeeded(best, string(content)), nil
	}
	return "", ErrNoSubtitleInArchive
}

func zipNames(files []*zip.File) []string {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	return names
}

func extractRar(data []byte) (string, error) {
	r, err := rardecode.NewReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("rar: %w", err)
	}

	type member struct {
		name string
		data []byte
	}
	var members []member
	for {
		hdr, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("rar: %w", err)
		}
		if hdr.IsDir {
			continue
		}
		content, err := io.ReadAll(io.LimitReader(r, MaxArchiveBytes))
		if err != nil {
			return "", err
		}
		members = append(members, member{name: hdr.Name, data: content})
	}

	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.name
	}
	best := pickBestMember(names)
	if best == "" {
		return "", ErrNoSubtitleInArchive
	}
	for _, m := range members {
		if m.name == best {
			return convertIfNeeded(best, string(m.data)), nil
		}
	}
	return "", ErrNoSubtitleInArchive
}

func extractSevenZip(data []byte) (string, error) {
	r, err := sevenzip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("7z: %w", err)
	}
	names := make([]string, len(r.File))
	for i, f := range r.File {
		names[i] = f.Name
	}
	best := pickBestMember(names)
	if best == "" {
		return "", ErrNoSubtitleInArchive
	}
	for _, f := range r.File {
		if f.Name != best {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("7z open %s: %w", f.Name, err)
		}
		defer rc.Close()
		content, err := io.ReadAll(io.LimitReader(rc, MaxArchiveBytes))
		if err != nil {
			return "", err
		}
		return convertIfNeeded(best, string(content)), nil
	}
	return "", ErrNoSubtitleInArchive
}

func extractGzip(data []byte) (string, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("gzip: %w", err)
	}
	defer gr.Close()

	// A gzip stream may wrap a tar archive (.tar.gz) or a single subtitle
	// file directly; try tar first, fall back to treating the decompressed
	// bytes as one subtitle file named after the gzip member.
	content, err := io.ReadAll(io.LimitReader(gr, MaxArchiveBytes))
	if err != nil {
		return "", err
	}
	if text, err := extractTar(bytes.NewReader(content)); err == nil {
		return text, nil
	}
	name := gr.Name
	if name == "" {
		name = "subtitle.srt"
	}
	return convertIfNeeded(name, string(content)), nil
}

func extractTar(r io.Reader) (string, error) {
	tr := tar.NewReader(r)

	type member struct {
		name string
		data []byte
	}
	var members []member
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("tar: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		content, err := io.ReadAll(io.LimitReader(tr, MaxArchiveBytes))
		if err != nil {
			return "", err
		}
		members = append(members, member{name: hdr.Name, data: content})
	}
	if len(members) == 0 {
		return "", ErrNoSubtitleInArchive
	}

	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.name
	}
	best := pickBestMember(names)
	if best == "" {
		return "", ErrNoSubtitleInArchive
	}
	for _, m := range members {
		if m.name == best {
			return convertIfNeeded(best, string(m.data)), nil
		}
	}
	return "", ErrNoSubtitleInArchive
}

// pickBestMember selects the preferred subtitle file from a list of archive
// member names: .srt first, then .vtt, .ass, .ssa.
func pickBestMember(names []string) string {
	for _, ext := range []string{".srt", ".vtt", ".ass", ".ssa"} {
		for _, n := range names {
			if strings.HasSuffix(strings.ToLower(n), ext) {
				return n
			}
		}
	}
	return ""
}

// convertIfNeeded converts ASS/SSA content to SRT; VTT and SRT pass through
// verbatim (VTT is preserved verbatim; the download path
// itself only guarantees SRT framing for .srt/.ass/.ssa members).
func convertIfNeeded(name, content string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".ass"), strings.HasSuffix(lower, ".ssa"):
		return assToSRT(content)
	default:
		return content
	}
}

// assToSRT does a best-effort conversion of Advanced SubStation Alpha
// dialogue lines into SRT cues, extracting start/end times and stripping
// ASS override tags ("{\...}").
func assToSRT(content string) string {
	var out strings.Builder
	index := 1
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "Dialogue:") {
			continue
		}
		fields := strings.SplitN(strings.TrimPrefix(line, "Dialogue:"), ",", 10)
		if len(fields) < 10 {
			continue
		}
		start := assTimeToSRT(strings.TrimSpace(fields[1]))
		end := assTimeToSRT(strings.TrimSpace(fields[2]))
		text := stripASSTags(fields[9])
		if start == "" || end == "" || text == "" {
			continue
		}
		fmt.Fprintf(&out, "%d\n%s --> %s\n%s\n\n", index, start, end, text)
		index++
	}
	return out.String()
}

func assTimeToSRT(t string) string {
	// ASS: H:MM:SS.cc  →  SRT: HH:MM:SS,mmm
	parts := strings.SplitN(t, ":", 3)
	if len(parts) != 3 {
		return ""
	}
	secParts := strings.SplitN(parts[2], ".", 2)
	if len(secParts) != 2 {
		return ""
	}
	h := parts[0]
	if len(h) == 1 {
		h = "0" + h
	}
	ms := secParts[1]
	for len(ms) < 3 {
		ms += "0"
	}
	return fmt.Sprintf("%s:%s:%s,%s", h, parts[1], secParts[0], ms[:3])
}

func stripASSTags(text string) string {
	var out strings.Builder
	depth := 0
	for _, r := range text {
		switch r {
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 {
				out.WriteRune(r)
			}
		}
	}
	result := out.String()
	result = strings.ReplaceAll(result, "\\N", "\n")
	result = strings.ReplaceAll(result, "\\n", "\n")
	return strings.TrimSpace(result)
}
