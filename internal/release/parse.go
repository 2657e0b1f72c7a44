// Package release implements the Release Metadata Parser: a pure,
// stateless function that extracts quality facets from a release filename.
//
// Detection is case-insensitive and prioritized: specific tokens are tried
// before generic ones (e.g. "web-dl" before "web", "hdr10+" before "hdr10"),
// mirroring a parsed-title field vocabulary (resolution/codec/group/etc.) but
// implemented natively instead of shelling out to a subprocess, since this
// component must remain side-effect free: no network calls, no subprocess.
package release

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"subaddon/models"
)

var (
	// Resolution, most specific first.
	reResolution = regexp.MustCompile(`(?i)\b(2160p|4k|uhd|1080p|1080i|720p|720i|480p|480i|360p)\b`)

	// Rip type, ordered so specific forms are tried before their generic
	// parents by the caller (see ripTypeOrder below).
	reWebDL = regexp.MustCompile(`(?i)\bweb[.\-_ ]?dl\b`)
	reWebRip = regexp.MustCompile(`(?i)\bweb[.\-_ ]?rip\b`)
	reWeb = regexp.MustCompile(`(?i)\bweb\b`)
	reBDRemux = regexp.MustCompile(`(?i)\b(bd|blu[.\-_ ]?ray)[.\-_ ]?remux\b`)
	reBluray = regexp.MustCompile(`(?i)\bblu[.\-_ ]?ray\b`)
	reBDRip = regexp.MustCompile(`(?i)\bbd[.\-_ ]?rip\b`)
	reHDTV = regexp.MustCompile(`(?i)\bhdtv\b`)
	rePDTV = regexp.MustCompile(`(?i)\bpdtv\b`)
	reDVDScr = regexp.MustCompile(`(?i)\bdvd[.\-_ ]?scr\b`)
	reDVDRip = regexp.MustCompile(`(?i)\bdvd[.\-_ ]?rip\b`)
	reHDRip = regexp.MustCompile(`(?i)\bhd[.\-_ ]?rip\b`)
	reTelesync = regexp.MustCompile(`(?i)\b(telesync|\bts\b)\b`)
	reScreener = regexp.MustCompile(`(?i)\bscreener\b`)
	reCam = regexp.MustCompile(`(?i)\bcam\b`)

	// Codec, specific before generic.
	reHEVC = regexp.MustCompile(`(?i)\b(x265|h\.?265|hevc)\b`)
	reAVC = regexp.MustCompile(`(?i)\b(x264|h\.?264|avc)\b`)
	reAV1 = regexp.MustCompile(`(?i)\bav1\b`)

	// Audio.
	reAudio = regexp.MustCompile(`(?i)\b(atmos|truehd|dts[-.]?hd|dts-x|dts|dd[p+]?5\.1|dd[p+]?7\.1|ddp|eac3|ac3|aac2?\.0|aac|flac|opus)\b`)

	// HDR, specific ("hdr10+") before generic ("hdr10", "hdr").
	reHDR10Plus = regexp.MustCompile(`(?i)\bhdr10\+`)
	reHDR10 = regexp.MustCompile(`(?i)\bhdr10\b`)
	reDV = regexp.MustCompile(`(?i)\b(dv|dolby[.\-_ ]?vision|dovi)\b`)
	reHLG = regexp.MustCompile(`(?i)\bhlg\b`)
	reHDR = regexp.MustCompile(`(?i)\bhdr\b`)

	// Platform tags.
	rePlatform = regexp.MustCompile(`(?i)\b(amzn|nf|dsnp|atvp|hmax|hulu|pcok|stan|crav|itunes|pmtp)\b`)

	// Edition markers, specific before generic.
	reDirectorsCut = regexp.MustCompile(`(?i)\bdirector'?s?[.\-_ ]?cut\b`)
	reExtended = regexp.MustCompile(`(?i)\bextended\b`)
	reUnrated = regexp.MustCompile(`(?i)\bunrated\b`)
	reTheatrical = regexp.MustCompile(`(?i)\btheatrical\b`)
	reIMAX = regexp.MustCompile(`(?i)\bimax\b`)
	reRemastered = regexp.MustCompile(`(?i)\bremaster(?:ed)?\b`)

	reProper = regexp.MustCompile(`(?i)\bproper\b`)
	reRepack = regexp.MustCompile(`(?i)\brepack\b`)

	reYear = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)

	reSeasonEpisode = regexp.MustCompile(`(?i)\bS(\d{1,2})E(\d{1,3})\b`)

	// Release-group extraction, tried in order: bracketed, parenthesized,
	// trailing "-GROUP", trailing bare alphanumeric token.
	reBracketGroup = regexp.MustCompile(`\[([A-Za-z0-9._-]{2,})\]\s*$`)
	reParenGroup = regexp.MustCompile(`\(([A-Za-z0-9._-]{2,})\)\s*$`)
	reDashGroup = regexp.MustCompile(`-([A-Za-z0-9]{2,})$`)
	reBareGroup = regexp.MustCompile(`([A-Za-z0-9]{2,})$`)

	reSeparators = regexp.MustCompile(`[._]+`)
)

// popularGroups is a fixed allow-list of trusted/popular release groups,
// matched case-insensitively against the extracted, lowercased group name.
var popularGroups = map[string]bool{
	"rarbg": true, "sparks": true, "geckos": true, "ntb": true, "ntg": true,
	"flux": true, "fraction": true, "successfulcrab": true, "framestor": true,
	"decibel": true, "drones": true, "cmrg": true, "kogi": true, "playweb": true,
	"tepes": true, "edith": true, "ethd": true, "evo": true, "galaxytv": true,
	"amzn": true, "ghosts": true, "mixed": true, "silence": true, "trollhd": true,
	"cakes": true, "qoq": true, "meraz": true, "minx": true, "hone": true,
}

// Parse extracts release quality facets from a filename. It never performs
// I/O and is idempotent: Parse(f) == Parse(f) for any f.
func Parse(filename string) models.Facets {
	base := filepath.Base(filename)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)

	facets := models.Facets{}

	if m := reResolution.FindString(name); m != "" {
		facets.Resolution = normalizeResolution(m)
	}

	facets.RipType = detectRipType(name)
	facets.RipTier = models.RipTier(facets.RipType)

	switch {
	case reHEVC.MatchString(name):
		facets.Codec = "x265"
	case reAVC.MatchString(name):
		facets.Codec = "x264"
	case reAV1.MatchString(name):
		facets.Codec = "av1"
	}

	if m := reAudio.FindString(name); m != "" {
		facets.Audio = strings.ToLower(m)
	}

	facets.HDR = detectHDR(name)

	if m := rePlatform.FindString(name); m != "" {
		facets.Platform = strings.ToLower(m)
	}

	facets.Edition = detectEdition(name)
	facets.ProperOrRepack = reProper.MatchString(name) || reRepack.MatchString(name)

	if m := reYear.FindString(name); m != "" {
		facets.Year, _ = strconv.Atoi(m)
	}

	if m := reSeasonEpisode.FindString(name); m != "" {
		facets.SeasonEpisode = strings.ToUpper(m)
	}

	facets.ReleaseGroup = extractReleaseGroup(name)
	facets.IsPopularGroup = popularGroups[facets.ReleaseGroup]

	facets.Tokens = tokenize(name)

	return facets
}

func normalizeResolution(raw string) models.Resolution {
	lower := strings.ToLower(raw)
	switch lower {
	case "2160p", "4k", "uhd":
		return models.Resolution4K
	case "1080p", "1080i":
		return models.Resolution1080p
	case "720p", "720i":
		return models.Resolution720p
	case "480p", "480i":
		return models.Resolution480p
	case "360p":
		return models.Resolution360p
	}
	return ""
}

// detectRipType tries specific patterns before their generic parents:
// web-dl/webrip before the bare "web" token; bd-remux before bluray/bdrip.
func detectRipType(name string) models.RipType {
	switch {
	case reBDRemux.MatchString(name):
		return models.RipBDRemux
	case reWebDL.MatchString(name):
		return models.RipWebDL
	case reWebRip.MatchString(name):
		return models.RipWebRip
	case reBluray.MatchString(name):
		return models.RipBluray
	case reBDRip.MatchString(name):
		return models.RipBDRip
	case reHDTV.MatchString(name):
		return models.RipHDTV
	case rePDTV.MatchString(name):
		return models.RipPDTV
	case reDVDScr.MatchString(name):
		return models.RipDVDScr
	case reDVDRip.MatchString(name):
		return models.RipDVDRip
	case reHDRip.MatchString(name):
		return models.RipHDRip
	case reScreener.MatchString(name):
		return models.RipScreener
	case reTelesync.MatchString(name):
		return models.RipTelesync
	case reCam.MatchString(name):
		return models.RipCam
	case reWeb.MatchString(name):
		return models.RipWeb
	}
	return ""
}

// detectHDR tries "hdr10+" before "hdr10" before the bare "hdr" token.
func detectHDR(name string) string {
	switch {
	case reHDR10Plus.MatchString(name):
		return "hdr10+"
	case reDV.MatchString(name):
		return "dv"
	case reHDR10.MatchString(name):
		return "hdr10"
	case reHLG.MatchString(name):
		return "hlg"
	case reHDR.MatchString(name):
		return "hdr"
	}
	return ""
}

func detectEdition(name string) models.Edition {
	switch {
	case reDirectorsCut.MatchString(name):
		return models.EditionDirectorsCut
	case reExtended.MatchString(name):
		return models.EditionExtended
	case reUnrated.MatchString(name):
		return models.EditionUnrated
	case reIMAX.MatchString(name):
		return models.EditionIMAX
	case reRemastered.MatchString(name):
		return models.EditionRemastered
	case reTheatrical.MatchString(name):
		return models.EditionTheatrical
	}
	return ""
}

// extractReleaseGroup tries, in order: bracketed "[GROUP]", parenthesized
// "(GROUP)", trailing "-GROUP", then a trailing bare alphanumeric token of
// at least 2 characters.
func extractReleaseGroup(name string) string {
	if m := reBracketGroup.FindStringSubmatch(name); len(m) > 1 {
		return strings.ToLower(m[1])
	}
	if m := reParenGroup.FindStringSubmatch(name); len(m) > 1 {
		return strings.ToLower(m[1])
	}
	if m := reDashGroup.FindStringSubmatch(name); len(m) > 1 {
		return strings.ToLower(m[1])
	}
	if m := reBareGroup.FindStringSubmatch(name); len(m) > 1 {
		return strings.ToLower(m[1])
	}
	return ""
}

// tokenize splits a release name into normalized whitespace tokens, used by
// the scorer for token-level bonuses and token-length-ratio bonuses.
func tokenize(name string) []string {
	normalized := reSeparators.ReplaceAllString(name, " ")
	normalized = strings.ReplaceAll(normalized, "-", " ")
	fields := strings.Fields(normalized)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		t := strings.ToLower(strings.TrimSpace(f))
		if t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// TitleBase strips everything from the year onward and replaces separators
// with spaces, producing the "title base" the scorer uses to decide
// whether two candidates describe the same underlying work.
func TitleBase(name string) string {
	base := filepath.Base(name)
	ext := filepath.Ext(base)
	base = strings.TrimSuffix(base, ext)

	if loc := reYear.FindStringIndex(base); loc != nil {
		base = base[:loc[0]]
	} else if loc := reSeasonEpisode.FindStringIndex(base); loc != nil {
		base = base[:loc[0]]
	}

	base = reSeparators.ReplaceAllString(base, " ")
	base = strings.ReplaceAll(base, "-", " ")
	base = strings.Join(strings.Fields(base), " ")
	return strings.ToLower(strings.TrimSpace(base))
}
