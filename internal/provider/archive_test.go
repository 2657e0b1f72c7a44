package provider

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestIsArchive_DetectsZipMagic(t *testing.T) {
	data := buildZip(t, map[string]string{"a.srt": "1\n00:00:01,000 --> 00:00:02,000\nHi\n"})
	assert.True(t, IsArchive(data))
}

func TestIsArchive_PlainTextIsNot(t *testing.T) {
	assert.False(t, IsArchive([]byte("1\n00:00:01,000 --> 00:00:02,000\nHi\n")))
}

func TestExtractSubtitle_PrefersSRTOverVTT(t *testing.T) {
	data := buildZip(t, map[string]string{
		"sub.vtt": "WEBVTT\n\n1\n00:00:01.000 --> 00:00:02.000\nHi vtt\n",
		"sub.srt": "1\n00:00:01,000 --> 00:00:02,000\nHi srt\n",
	})
	text, err := ExtractSubtitle(data)
	require.NoError(t, err)
	assert.Contains(t, text, "Hi srt")
}

func TestExtractSubtitle_FallsBackToVTT(t *testing.T) {
	data := buildZip(t, map[string]string{
		"sub.vtt": "WEBVTT\n\n1\n00:00:01.000 --> 00:00:02.000\nHi vtt\n",
	})
	text, err := ExtractSubtitle(data)
	require.NoError(t, err)
	assert.Contains(t, text, "Hi vtt")
}

func TestExtractSubtitle_TooLargeRejected(t *testing.T) {
	big := make([]byte, MaxArchiveBytes+1)
	copy(big, magicZip)
	_, err := ExtractSubtitle(big)
	assert.ErrorIs(t, err, ErrArchiveTooLarge)
}

func TestExtractSubtitle_NoSubtitleMember(t *testing.T) {
	data := buildZip(t, map[string]string{"readme.txt": "nothing here"})
	_, err := ExtractSubtitle(data)
	assert.ErrorIs(t, err, ErrNoSubtitleInArchive)
}

func TestAssToSRT_ConvertsDialogueLines(t *testing.T) {
	ass := "Dialogue: 0,0:00:01.00,0:00:02.50,Default,,0,0,0,,Hello {\\i1}world{\\i0}\n"
	out := assToSRT(ass)
	assert.Contains(t, out, "00:00:01,000 --> 00:00:02,500")
	assert.Contains(t, out, "Hello world")
}
