// Package score implements the Match Scorer / Ranker: scoring a
// candidate subtitle's release name against the player's stream filename,
// and ranking + per-language quota enforcement over scored candidates.
//
// The arithmetic mirrors a precedence cascade a stream-dedup filter
// applies when comparing scrape results against a stream's parsed title
// (bestTitleSimilarity, titleContainmentScore, facet-bonus accumulation),
// adapted to the candidate-vs-stream shape this component needs instead of
// stream-vs-stream dedup.
package score

import (
	"math"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"

	"subaddon/internal/release"
	"subaddon/models"
)

var (
	reTokenYear = regexp.MustCompile(`^(19\d{2}|20\d{2})$`)
	reTokenSE = regexp.MustCompile(`(?i)^s\d{1,2}e\d{1,3}$`)
	reTokenNumeric = regexp.MustCompile(`^\d+$`)
)

var editionTokens = map[string]bool{
	"extended": true, "unrated": true, "directors": true, "cut": true,
	"imax": true, "remastered": true, "theatrical": true,
}

// resolutionRank orders resolutions from lowest to highest for the
// "candidate greater/less than stream" comparisons.
var resolutionRank = map[models.Resolution]int{
	models.Resolution360p: 1,
	models.Resolution480p: 2,
	models.Resolution720p: 3,
	models.Resolution1080p: 4,
	models.Resolution4K: 5,
}

// Score computes an integer match score ≥ 0 between the filename of the
// stream being played and a candidate subtitle's release name.
func Score(streamFilename, candidateName string) int {
	if strings.EqualFold(stripExt(strings.TrimSpace(streamFilename)), stripExt(strings.TrimSpace(candidateName))) {
		return 10000
	}

	streamBase := release.TitleBase(streamFilename)
	candBase := release.TitleBase(candidateName)
	if streamBase == "" || candBase == "" {
		return 0
	}
	if !titleBasesOverlap(streamBase, candBase) {
		return 0
	}

	result := 500.0 // base title-match

	sf := release.Parse(streamFilename)
	cf := release.Parse(candidateName)

	result += groupBonus(sf, cf)
	result += ripTypeBonus(sf, cf)
	result += platformBonus(sf, cf)
	result += resolutionBonus(sf, cf)
	result += codecBonus(sf, cf)
	result += audioBonus(sf, cf)
	result += hdrBonus(sf, cf)
	result += tokenBonus(sf, cf)
	result += editionBonus(sf, cf)
	result += properRepackBonus(sf, cf)

	result *= structuralMultiplier(sf, cf)

	if len(cf.Tokens) < 2 {
		result *= 0.5
	}

	final := int(math.Round(result))
	if final < 0 {
		return 0
	}
	return final
}

// stripExt removes the file extension so "Show.S02E05.WEB-DL.mkv" and
// "Show.S02E05.WEB-DL.srt" compare equal as the same release under a
// different container/subtitle extension.
func stripExt(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// titleBasesOverlap tests raw containment first, then falls back to
// romanized forms so a Japanese release title still matches a
// Latin-transliterated candidate title (and vice versa).
func titleBasesOverlap(streamBase, candBase string) bool {
	if strings.Contains(streamBase, candBase) || strings.Contains(candBase, streamBase) {
		return true
	}
	streamRomanized := romanizeJapanese(streamBase)
	candRomanized := romanizeJapanese(candBase)
	if streamRomanized == "" && candRomanized == "" {
		return false
	}
	if streamRomanized == "" {
		streamRomanized = streamBase
	}
	if candRomanized == "" {
		candRomanized = candBase
	}
	return strings.Contains(streamRomanized, candRomanized) || strings.Contains(candRomanized, streamRomanized)
}

// romanizeJapanese transliterates Hiragana/Katakana/Han runes to Latin
// text, returning "" when the input carries no Japanese script at all.
func romanizeJapanese(value string) string {
	if !containsJapaneseRune(value) {
		return ""
	}
	romanized := strings.TrimSpace(unidecode.Unidecode(value))
	if romanized == "" {
		return ""
	}
	return strings.Join(strings.Fields(romanized), " ")
}

func containsJapaneseRune(value string) bool {
	for _, r := range value {
		switch {
		case unicode.In(r, unicode.Hiragana, unicode.Katakana, unicode.Han):
			return true
		case r >= 0xFF66 && r <= 0xFF9D:
			return true
		}
	}
	return false
}

func groupBonus(sf, cf models.Facets) float64 {
	switch {
	case cf.ReleaseGroup != "" && sf.ReleaseGroup != "":
		if cf.ReleaseGroup == sf.ReleaseGroup {
			if cf.IsPopularGroup {
				return 5000
			}
			return 4000
		}
		return -100
	case cf.ReleaseGroup != "" && sf.ReleaseGroup == "" && cf.IsPopularGroup:
		return 200
	}
	return 0
}

func ripTypeBonus(sf, cf models.Facets) float64 {
	st, ct := sf.RipTier, cf.RipTier
	if st == 0 || ct == 0 {
		return 0
	}
	delta := st - ct
	if delta < 0 {
		delta = -delta
	}
	switch {
	case delta == 0:
		return 2500
	case delta == 1:
		return 800
	case delta == 2:
		return 300
	default:
		return -500
	}
}

func platformBonus(sf, cf models.Facets) float64 {
	if sf.Platform == "" || cf.Platform == "" {
		return 0
	}
	if sf.Platform == cf.Platform {
		return 1200
	}
	return -200
}

func resolutionBonus(sf, cf models.Facets) float64 {
	if sf.Resolution == "" || cf.Resolution == "" {
		return 0
	}
	if sf.Resolution == cf.Resolution {
		return 1000
	}
	sr, sok := resolutionRank[sf.Resolution]
	cr, cok := resolutionRank[cf.Resolution]
	if !sok || !cok {
		return 0
	}
	if (sf.Resolution == models.Resolution720p && cf.Resolution == models.Resolution1080p) ||
		(sf.Resolution == models.Resolution1080p && cf.Resolution == models.Resolution720p) {
		return 400
	}
	if cr > sr {
		return 200
	}
	return -200
}

func codecBonus(sf, cf models.Facets) float64 {
	if sf.Codec == "" || cf.Codec == "" {
		return 0
	}
	if sf.Codec == cf.Codec {
		return 500
	}
	if (sf.Codec == "x264" && cf.Codec == "x265") || (sf.Codec == "x265" && cf.Codec == "x264") {
		return 200
	}
	return 0
}

func audioBonus(sf, cf models.Facets) float64 {
	if sf.Audio != "" && sf.Audio == cf.Audio {
		return 400
	}
	return 0
}

func hdrBonus(sf, cf models.Facets) float64 {
	if sf.HDR == "" || cf.HDR == "" {
		return 0
	}
	if sf.HDR == cf.HDR {
		return 600
	}
	return -150
}

// tokenBonus classifies the tokens common to both release names and sums
// per-token bonuses (year +3, season/episode +4, numeric +2, edition +2,
// other +1), then scales the sum ×100.
func tokenBonus(sf, cf models.Facets) float64 {
	streamTokens := make(map[string]bool, len(sf.Tokens))
	for _, t := range sf.Tokens {
		streamTokens[t] = true
	}

	var sum float64
	for _, t := range cf.Tokens {
		if !streamTokens[t] {
			continue
		}
		switch {
		case reTokenYear.MatchString(t):
			sum += 3
		case reTokenSE.MatchString(t):
			sum += 4
		case reTokenNumeric.MatchString(t):
			sum += 2
		case editionTokens[t]:
			sum += 2
		default:
			sum += 1
		}
	}
	return sum * 100
}

func editionBonus(sf, cf models.Facets) float64 {
	switch {
	case sf.Edition != "" && cf.Edition != "":
		if sf.Edition == cf.Edition {
			return 1500
		}
		return -1000
	case (sf.Edition != "") != (cf.Edition != ""):
		return -300
	}
	return 0
}

func properRepackBonus(sf, cf models.Facets) float64 {
	if sf.ProperOrRepack == cf.ProperOrRepack {
		return 800
	}
	return -400
}

// structuralMultiplier applies the post-sum multipliers: token-length
// ratio and critical-facet (group, rip, resolution) agreement count.
func structuralMultiplier(sf, cf models.Facets) float64 {
	multiplier := 1.0

	shorter, longer := len(sf.Tokens), len(cf.Tokens)
	if shorter > longer {
		shorter, longer = longer, shorter
	}
	if longer > 0 {
		ratio := float64(shorter) / float64(longer)
		switch {
		case ratio > 0.8:
			multiplier *= 1.3
		case ratio > 0.6:
			multiplier *= 1.15
		}
	}

	matches := 0
	if sf.ReleaseGroup != "" && sf.ReleaseGroup == cf.ReleaseGroup {
		matches++
	}
	if sf.RipType != "" && sf.RipType == cf.RipType {
		matches++
	}
	if sf.Resolution != "" && sf.Resolution == cf.Resolution {
		matches++
	}
	switch {
	case matches >= 3:
		multiplier *= 1.5
	case matches == 2:
		multiplier *= 1.25
	}

	return multiplier
}

// Rank sorts candidates by MatchScore descending (stable) and enforces a
// per-language quota, preserving ranked order within each language.
func Rank(candidates []models.SubtitleCandidate, quotaPerLanguage int) []models.SubtitleCandidate {
	sorted := make([]models.SubtitleCandidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MatchScore > sorted[j].MatchScore
	})

	if quotaPerLanguage <= 0 {
		return sorted
	}

	counts := make(map[string]int)
	result := make([]models.SubtitleCandidate, 0, len(sorted))
	for _, c := range sorted {
		if counts[c.LanguageCode] >= quotaPerLanguage {
			continue
		}
		counts[c.LanguageCode]++
		result = append(result, c)
	}
	return result
}
