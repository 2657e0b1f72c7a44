package provider

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/avast/retry-go/v4"

	"subaddon/internal/language"
	"subaddon/models"
)

const subsourceSearchURLTemplate = "https://subsource.net/search/%s"

type SubSourceConfig struct {
	BaseURL       string
	Timeout       time.Duration
	SearchRetry   uint
	DownloadRetry uint
}

// SubSourceProvider implements Provider by scraping subsource.net listing
// HTML with goquery, grounded on the table-row-scraping pattern of
// Belphemur-SuperSubtitles's internal/parser.SubtitleParser.
type SubSourceProvider struct {
	cfg        SubSourceConfig
	httpClient *http.Client
	logger     *slog.Logger
}

var reSeasonPackTitle = regexp.MustCompile(`(?i)season\s+(\d+)`)
var reEpisodeTitle = regexp.MustCompile(`(?i)\bS(\d{1,2})E(\d{1,3})\b`)

func NewSubSourceProvider(cfg SubSourceConfig, client *http.Client) *SubSourceProvider {
	if client == nil {
		client = &http.Client{Timeout: DefaultSearchTimeout}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://subsource.net"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultSearchTimeout
	}
	if cfg.SearchRetry == 0 {
		cfg.SearchRetry = 3
	}
	if cfg.DownloadRetry == 0 {
		cfg.DownloadRetry = 2
	}
	return &SubSourceProvider{cfg: cfg, httpClient: client, logger: slog.Default().With("component", "provider-subsource")}
}

func (p *SubSourceProvider) Name() string { return "subsource" }

func (p *SubSourceProvider) NormalizeLanguage(raw string) (string, bool) {
	return language.Normalize(raw)
}

func (p *SubSourceProvider) SearchSubtitles(ctx context.Context, params models.SearchParams) ([]models.SubtitleCandidate, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	var candidates []models.SubtitleCandidate
	err := retry.Do(
		func() error {
			url := fmt.Sprintf(subsourceSearchURLTemplate, params.ImdbID)
			if p.cfg.BaseURL != "" {
				url = p.cfg.BaseURL + "/search/" + params.ImdbID
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			resp, err := p.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return fmt.Errorf("subsource transient status %d", resp.StatusCode)
			}
			if resp.StatusCode != http.StatusOK {
				return retry.Unrecoverable(fmt.Errorf("subsource status %d", resp.StatusCode))
			}
			doc, err := goquery.NewDocumentFromReader(resp.Body)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			candidates = p.parseListing(doc, params)
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(p.cfg.SearchRetry),
		retry.DelayType(retry.BackOffDelay),
		retry.Delay(500*time.Millisecond),
	)
	if err != nil {
		p.logger.Warn("search failed", "error", err)
		return nil, nil
	}
	return candidates, nil
}

func (p *SubSourceProvider) parseListing(doc *goquery.Document, params models.SearchParams) []models.SubtitleCandidate {
	var candidates []models.SubtitleCandidate

	doc.Find("tbody").ChildrenFiltered("tr").Each(func(i int, row *goquery.Selection) {
		tds := row.Find("td")
		if tds.Length() < 4 {
			return
		}
		rawLang := strings.TrimSpace(tds.Eq(0).Text())
		code, ok := p.NormalizeLanguage(rawLang)
		if !ok {
			return
		}
		releaseName := strings.TrimSpace(tds.Eq(1).Text())
		href, exists := row.Find("a").Attr("href")
		if !exists || href == "" {
			return
		}

		isSeasonPack := reSeasonPackTitle.MatchString(releaseName)
		epStart, epEnd := 0, 0
		if m := reEpisodeTitle.FindStringSubmatch(releaseName); len(m) == 3 {
			epStart, _ = strconv.Atoi(m[2])
			epEnd = epStart
		}
		if params.Type == "episode" && !isSeasonPack && epStart != 0 && epStart != params.Episode {
			return
		}

		downloads := 0
		if len(tds.Nodes) > 2 {
			downloads, _ = strconv.Atoi(strings.TrimSpace(tds.Eq(2).Text()))
		}

		candidates = append(candidates, models.SubtitleCandidate{
			FileID:            PrefixedID(p.Name(), href),
			Language:          rawLang,
			LanguageCode:      code,
			ReleaseName:       releaseName,
			Downloads:         downloads,
			Provider:          p.Name(),
			ProviderPrivateID: href,
			IsSeasonPack:      isSeasonPack,
			EpisodeRangeStart: epStart,
			EpisodeRangeEnd:   epEnd,
		})
	})

	return candidates
}

func (p *SubSourceProvider) DownloadSubtitle(ctx context.Context, fileID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultDownloadTimeout)
	defer cancel()

	path := PrivateID(fileID)
	if path == "" {
		return SentinelInvalid, nil
	}
	url := path
	if !strings.HasPrefix(url, "http") {
		url = p.cfg.BaseURL + path
	}

	var content []byte
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			resp, err := p.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode == http.StatusNotFound {
				return retry.Unrecoverable(fmt.Errorf("subsource download not found"))
			}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return fmt.Errorf("subsource download transient status %d", resp.StatusCode)
			}
			if resp.StatusCode != http.StatusOK {
				return retry.Unrecoverable(fmt.Errorf("subsource download status %d", resp.StatusCode))
			}
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			content = body
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(p.cfg.DownloadRetry),
		retry.DelayType(retry.BackOffDelay),
		retry.Delay(500*time.Millisecond),
	)
	if err != nil {
		p.logger.Warn("download failed", "error", err)
		return SentinelUnavailable, nil
	}
	return decodeDownloadedBytes(content)
}
