package models

// Resolution enumerates the detected video resolution of a release.
type Resolution string

const (
	Resolution4K Resolution = "4k"
	Resolution1080p Resolution = "1080p"
	Resolution720p Resolution = "720p"
	Resolution480p Resolution = "480p"
	Resolution360p Resolution = "360p"
)

// RipType enumerates the source/rip category of a release, ordered by
// sync-compatibility priority via RipTier (lower tier = better match quality).
type RipType string

const (
	RipWebDL RipType = "web-dl"
	RipWebRip RipType = "webrip"
	RipWeb RipType = "web"
	RipBluray RipType = "bluray"
	RipBDRip RipType = "bdrip"
	RipBDRemux RipType = "bdremux"
	RipHDTV RipType = "hdtv"
	RipPDTV RipType = "pdtv"
	RipDVDRip RipType = "dvdrip"
	RipDVDScr RipType = "dvdscr"
	RipHDRip RipType = "hdrip"
	RipCam RipType = "cam"
	RipTelesync RipType = "telesync"
	RipScreener RipType = "screener"
)

// ripTiers assigns an ordinal tier to each rip type: 1 = best, 12 = worst.
// Declared once here so both the parser and the scorer agree on it.
var ripTiers = map[RipType]int{
	RipBDRemux: 1,
	RipBluray: 2,
	RipBDRip: 3,
	RipWebDL: 4,
	RipWebRip: 5,
	RipWeb: 6,
	RipHDTV: 7,
	RipPDTV: 8,
	RipDVDRip: 9,
	RipDVDScr: 10,
	RipHDRip: 10,
	RipScreener: 11,
	RipTelesync: 11,
	RipCam: 12,
}

// RipTier returns the ordinal quality tier for a rip type, or 0 (unknown)
// when the rip type is empty or not recognized.
func RipTier(r RipType) int {
	if r == "" {
		return 0
	}
	if tier, ok := ripTiers[r]; ok {
		return tier
	}
	return 0
}

// Edition enumerates a release's cut/edition marker.
type Edition string

const (
	EditionExtended Edition = "extended"
	EditionUnrated Edition = "unrated"
	EditionDirectorsCut Edition = "directors.cut"
	EditionTheatrical Edition = "theatrical"
	EditionIMAX Edition = "imax"
	EditionRemastered Edition = "remastered"
)

// Facets is the parsed output of the release metadata parser: the
// quality-relevant facets extracted from a release filename.
type Facets struct {
	Resolution Resolution
	RipType RipType
	RipTier int
	Codec string // e.g. x264, x265, hevc, av1
	Audio string // e.g. aac, dts, atmos, dd5.1
	HDR string // e.g. hdr10, hdr10+, dv, hlg
	Platform string // e.g. amzn, nf, dsnp, atvp, hulu
	ReleaseGroup string // lowercased
	IsPopularGroup bool
	Edition Edition
	ProperOrRepack bool
	Tokens []string // normalized tokens, used by the scorer for token-level bonuses
	SeasonEpisode string // e.g. "S02E05" if detected, empty otherwise
	Year int
}
