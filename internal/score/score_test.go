package score

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"subaddon/models"
)

func TestScore_ExactMatchIsTerminal(t *testing.T) {
	name := "Show.Name.S01E02.1080p.WEB-DL.DDP5.1.H.264-FLUX.mkv"
	assert.Equal(t, 10000, Score(name, name))
}

func TestScore_ExactMatchIgnoringExtensionIsTerminal(t *testing.T) {
	got := Score(
		"Show.S02E05.1080p.WEB-DL.x265-RARBG.mkv",
		"Show.S02E05.1080p.WEB-DL.x265-RARBG.srt",
	)
	assert.Equal(t, 10000, got)
}

func TestScore_DifferentWorkIsZero(t *testing.T) {
	got := Score(
		"Breaking.Bad.S01E01.1080p.BluRay.x264-SPARKS.mkv",
		"The.Office.S01E01.1080p.BluRay.x264-SPARKS.mkv",
	)
	assert.Equal(t, 0, got)
}

func TestScore_SameReleaseHigherThanMismatchedFacets(t *testing.T) {
	stream := "Show.Name.S01E02.1080p.WEB-DL.DDP5.1.H.264-FLUX.mkv"
	goodCandidate := "Show.Name.S01E02.1080p.WEB-DL.DDP5.1.H.264-FLUX.srt"
	worseCandidate := "Show.Name.S01E02.480p.HDTV.x264-CAM.srt"

	good := Score(stream, goodCandidate)
	worse := Score(stream, worseCandidate)

	assert.Greater(t, good, worse)
	assert.GreaterOrEqual(t, good, 0)
	assert.GreaterOrEqual(t, worse, 0)
}

func TestScore_NeverNegative(t *testing.T) {
	got := Score(
		"Movie.2020.2160p.BluRay.HDR10.x265-FLUX.mkv",
		"Movie.2020.CAM.x264-UNKNOWNGROUP.srt",
	)
	assert.GreaterOrEqual(t, got, 0)
}

func TestScore_JapaneseTitleMatchesRomanizedCandidate(t *testing.T) {
	got := Score(
		"アニメ.2023.1080p.WEB-DL.AAC.H.264-GROUP.mkv",
		"Anime.2023.1080p.WEB-DL.AAC.H.264-GROUP.srt",
	)
	assert.Greater(t, got, 0)
}

func TestRank_OrdersDescendingStable(t *testing.T) {
	candidates := []models.SubtitleCandidate{
		{FileID: "a", LanguageCode: "eng", MatchScore: 100},
		{FileID: "b", LanguageCode: "eng", MatchScore: 300},
		{FileID: "c", LanguageCode: "eng", MatchScore: 300},
	}
	ranked := Rank(candidates, 0)
	assert.Equal(t, "b", ranked[0].FileID)
	assert.Equal(t, "c", ranked[1].FileID)
	assert.Equal(t, "a", ranked[2].FileID)
}

func TestRank_EnforcesPerLanguageQuota(t *testing.T) {
	candidates := []models.SubtitleCandidate{
		{FileID: "a", LanguageCode: "eng", MatchScore: 300},
		{FileID: "b", LanguageCode: "eng", MatchScore: 200},
		{FileID: "c", LanguageCode: "eng", MatchScore: 100},
		{FileID: "d", LanguageCode: "fra", MatchScore: 50},
	}
	ranked := Rank(candidates, 2)
	assert.Len(t, ranked, 3)
	assert.Equal(t, []string{"a", "b", "d"}, []string{ranked[0].FileID, ranked[1].FileID, ranked[2].FileID})
}
