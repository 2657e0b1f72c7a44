package release

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"subaddon/models"
)

func TestParse_WebDLBeatsWeb(t *testing.T) {
	f := Parse("Show.Name.S01E02.1080p.WEB-DL.DDP5.1.H.264-FLUX.mkv")
	assert.Equal(t, models.RipWebDL, f.RipType)
	assert.Equal(t, models.Resolution1080p, f.Resolution)
	assert.Equal(t, "x264", f.Codec)
	assert.Equal(t, "flux", f.ReleaseGroup)
	assert.True(t, f.IsPopularGroup)
	assert.Equal(t, "S01E02", f.SeasonEpisode)
}

func TestParse_HDR10PlusBeatsHDR10(t *testing.T) {
	f := Parse("Movie.2024.2160p.UHD.BluRay.HDR10+.x265-TERMINAL.mkv")
	assert.Equal(t, "hdr10+", f.HDR)
	assert.Equal(t, models.Resolution4K, f.Resolution)
	assert.Equal(t, models.RipBluray, f.RipType)
	assert.Equal(t, 2024, f.Year)
}

func TestParse_BracketGroup(t *testing.T) {
	f := Parse("[SubsPlease] Some Anime - 05 (1080p) [ABCDEF12].mkv")
	assert.Equal(t, "abcdef12", f.ReleaseGroup)
}

func TestParse_DashGroup(t *testing.T) {
	f := Parse("Movie.Title.2023.720p.WEBRip.x264-GECKOS.mkv")
	assert.Equal(t, "geckos", f.ReleaseGroup)
	assert.True(t, f.IsPopularGroup)
	assert.Equal(t, models.RipWebRip, f.RipType)
}

func TestParse_ProperRepack(t *testing.T) {
	f := Parse("Movie.Title.2023.PROPER.1080p.BluRay.x264-EVO.mkv")
	assert.True(t, f.ProperOrRepack)
}

func TestParse_EditionDirectorsCut(t *testing.T) {
	f := Parse("Movie.Title.2001.Directors.Cut.1080p.BluRay.x264-SPARKS.mkv")
	assert.Equal(t, models.EditionDirectorsCut, f.Edition)
}

func TestParse_Platform(t *testing.T) {
	f := Parse("Show.Name.S02E05.1080p.AMZN.WEB-DL.DDP5.1.H.264-NTb.mkv")
	assert.Equal(t, "amzn", f.Platform)
}

func TestParse_NoMatchesLeavesZeroValues(t *testing.T) {
	f := Parse("random_home_video.mp4")
	assert.Equal(t, models.Resolution(""), f.Resolution)
	assert.Equal(t, models.RipType(""), f.RipType)
	assert.Equal(t, 0, f.RipTier)
}

func TestParse_Idempotent(t *testing.T) {
	const name = "Show.Name.S01E02.1080p.WEB-DL.DDP5.1.H.264-FLUX.mkv"
	assert.Equal(t, Parse(name), Parse(name))
}

func TestTitleBase_StripsYearAndSeparators(t *testing.T) {
	assert.Equal(t, "movie title", TitleBase("Movie.Title.2023.1080p.BluRay.x264-SPARKS.mkv"))
	assert.Equal(t, "show name", TitleBase("Show.Name.S01E02.1080p.WEB-DL-FLUX.mkv"))
}
