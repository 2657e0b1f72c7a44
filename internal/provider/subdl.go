package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"

	"subaddon/internal/language"
	"subaddon/models"
)

const subdlBaseURL = "https://api.subdl.com/api/v1"

type SubDLConfig struct {
	APIKey        string
	Timeout       time.Duration
	SearchRetry   uint
	DownloadRetry uint
}

// SubDLProvider implements Provider against the SubDL search API.
type SubDLProvider struct {
	cfg        SubDLConfig
	httpClient *http.Client
	logger     *slog.Logger
}

func NewSubDLProvider(cfg SubDLConfig, client *http.Client) *SubDLProvider {
	if client == nil {
		client = &http.Client{Timeout: DefaultSearchTimeout}
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
	return &SubDLProvider{cfg: cfg, httpClient: client, logger: slog.Default().With("component", "provider-subdl")}
}

func (p *SubDLProvider) Name() string { return "subdl" }

func (p *SubDLProvider) NormalizeLanguage(raw string) (string, bool) {
	return language.Normalize(raw)
}

type subdlSearchResponse struct {
	Status  bool `json:"status"`
	Results []struct {
		ReleaseName string `json:"release_name"`
		Language    string `json:"lang"`
		Season      int    `json:"season"`
		Episode     int    `json:"episode"`
		HI          bool   `json:"hi"`
		URL         string `json:"url"`
	} `json:"subtitles"`
}

func (p *SubDLProvider) SearchSubtitles(ctx context.Context, params models.SearchParams) ([]models.SubtitleCandidate, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	var body subdlSearchResponse
	err := retry.Do(
		func() error {
			url := fmt.Sprintf("%s/subtitles?api_key=%s&imdb_id=%s", subdlBaseURL, p.cfg.APIKey, params.ImdbID)
			if params.Type == "episode" {
				url += fmt.Sprintf("&season_number=%d&episode_number=%d", params.Season, params.Episode)
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
			if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
				return retry.Unrecoverable(fmt.Errorf("subdl auth failed: %d", resp.StatusCode))
			}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return fmt.Errorf("subdl transient status %d", resp.StatusCode)
			}
			if resp.StatusCode != http.StatusOK {
				return retry.Unrecoverable(fmt.Errorf("subdl status %d", resp.StatusCode))
			}
			return json.NewDecoder(resp.Body).Decode(&body)
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

	candidates := make([]models.SubtitleCandidate, 0, len(body.Results))
	for i, r := range body.Results {
		code, ok := p.NormalizeLanguage(r.Language)
		if !ok {
			continue
		}
		isSeasonPack := params.Type == "episode" && r.Episode == 0 && r.Season > 0
		if params.Type == "episode" && !isSeasonPack && r.Episode != 0 && r.Episode != params.Episode {
			continue
		}
		privateID := fmt.Sprintf("%d", i)
		candidates = append(candidates, models.SubtitleCandidate{
			FileID:            PrefixedID(p.Name(), r.URL),
			Language:          r.Language,
			LanguageCode:      code,
			ReleaseName:       r.ReleaseName,
			Provider:          p.Name(),
			ProviderPrivateID: privateID,
			HearingImpaired:   r.HI,
			IsSeasonPack:      isSeasonPack,
			EpisodeRangeStart: r.Episode,
			EpisodeRangeEnd:   r.Episode,
		})
	}
	return candidates, nil
}

func (p *SubDLProvider) DownloadSubtitle(ctx context.Context, fileID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultDownloadTimeout)
	defer cancel()

	downloadURL := PrivateID(fileID)
	if downloadURL == "" {
		return SentinelInvalid, nil
	}

	var content []byte
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://dl.subdl.com"+downloadURL, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			resp, err := p.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode == http.StatusNotFound {
				return retry.Unrecoverable(fmt.Errorf("subdl download not found"))
			}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return fmt.Errorf("subdl download transient status %d", resp.StatusCode)
			}
			if resp.StatusCode != http.StatusOK {
				return retry.Unrecoverable(fmt.Errorf("subdl download status %d", resp.StatusCode))
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
