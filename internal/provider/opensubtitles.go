package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"subaddon/internal/language"
	"subaddon/models"
)

const openSubtitlesBaseURL = "https://api.opensubtitles.com/api/v1"

// OpenSubtitlesConfig carries the provider's credentials, mirroring
// the existing SubtitleSettings{OpenSubtitlesUsername,Password}
// and extending it with the REST v1 API key this provider actually needs.
type OpenSubtitlesConfig struct {
	APIKey        string
	Username      string
	Password      string
	UserAgent     string
	Timeout       time.Duration
	SearchRetry   uint
	DownloadRetry uint
}

// OpenSubtitlesProvider implements Provider against the OpenSubtitles REST
// v1 API. Every request is authenticated with the API key only; Username
// and Password are carried in the config but never sent, and no login
// session is opened.
type OpenSubtitlesProvider struct {
	cfg        OpenSubtitlesConfig
	httpClient *http.Client
	token      string
	logger     *slog.Logger
}

func NewOpenSubtitlesProvider(cfg OpenSubtitlesConfig, client *http.Client) *OpenSubtitlesProvider {
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
	if cfg.UserAgent == "" {
		cfg.UserAgent = "subaddon v1"
	}
	return &OpenSubtitlesProvider{
		cfg:        cfg,
		httpClient: client,
		logger:     slog.Default().With("component", "provider-opensubtitles"),
	}
}

func (p *OpenSubtitlesProvider) Name() string { return "opensubtitles" }

func (p *OpenSubtitlesProvider) NormalizeLanguage(raw string) (string, bool) {
	return language.Normalize(raw)
}

type osSearchResponse struct {
	Data []struct {
		Attributes struct {
			Language      string `json:"language"`
			Release       string `json:"release"`
			DownloadCount int    `json:"download_count"`
			Ratings       float64 `json:"ratings"`
			UploadDate    string `json:"upload_date"`
			HearingImpaired bool `json:"hearing_impaired"`
			ForeignPartsOnly bool `json:"foreign_parts_only"`
			MachineTranslated bool `json:"machine_translated"`
			FeatureDetails struct {
				Season  int `json:"season_number"`
				Episode int `json:"episode_number"`
			} `json:"feature_details"`
			Files []struct {
				FileID int `json:"file_id"`
			} `json:"files"`
		} `json:"attributes"`
	} `json:"data"`
}

func (p *OpenSubtitlesProvider) SearchSubtitles(ctx context.Context, params models.SearchParams) ([]models.SubtitleCandidate, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	var body osSearchResponse
	err := retry.Do(
		func() error {
			req, err := p.buildSearchRequest(ctx, params)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			resp, err := p.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
				return retry.Unrecoverable(fmt.Errorf("opensubtitles auth failed: %d", resp.StatusCode))
			}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return fmt.Errorf("opensubtitles transient status %d", resp.StatusCode)
			}
			if resp.StatusCode != http.StatusOK {
				return retry.Unrecoverable(fmt.Errorf("opensubtitles status %d", resp.StatusCode))
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

	candidates := make([]models.SubtitleCandidate, 0, len(body.Data))
	for _, d := range body.Data {
		code, ok := p.NormalizeLanguage(d.Attributes.Language)
		if !ok || len(d.Attributes.Files) == 0 {
			continue
		}
		uploadDate, _ := time.Parse(time.RFC3339, d.Attributes.UploadDate)
		isSeasonPack := params.Type == "episode" && d.Attributes.FeatureDetails.Episode == 0 && d.Attributes.FeatureDetails.Season > 0
		if params.Type == "episode" && !isSeasonPack && d.Attributes.FeatureDetails.Episode != params.Episode && d.Attributes.FeatureDetails.Episode != 0 {
			continue
		}
		candidates = append(candidates, models.SubtitleCandidate{
			FileID:            PrefixedID(p.Name(), strconv.Itoa(d.Attributes.Files[0].FileID)),
			Language:          d.Attributes.Language,
			LanguageCode:      code,
			ReleaseName:       d.Attributes.Release,
			Downloads:         d.Attributes.DownloadCount,
			Rating:            d.Attributes.Ratings,
			UploadDate:        uploadDate,
			Provider:          p.Name(),
			ProviderPrivateID: strconv.Itoa(d.Attributes.Files[0].FileID),
			HearingImpaired:   d.Attributes.HearingImpaired,
			ForeignPartsOnly:  d.Attributes.ForeignPartsOnly,
			MachineTranslated: d.Attributes.MachineTranslated,
			IsSeasonPack:      isSeasonPack,
			EpisodeRangeStart: d.Attributes.FeatureDetails.Episode,
			EpisodeRangeEnd:   d.Attributes.FeatureDetails.Episode,
		})
	}
	return candidates, nil
}

func (p *OpenSubtitlesProvider) buildSearchRequest(ctx context.Context, params models.SearchParams) (*http.Request, error) {
	url := fmt.Sprintf("%s/subtitles?imdb_id=%s", openSubtitlesBaseURL, strings.TrimPrefix(params.ImdbID, "tt"))
	if params.Type == "episode" {
		url += fmt.Sprintf("&season_number=%d&episode_number=%d", params.Season, params.Episode)
	}
	if len(params.Languages) > 0 {
		url += "&languages=" + strings.Join(params.Languages, ",")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Api-Key", p.cfg.APIKey)
	req.Header.Set("User-Agent", p.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

type osDownloadRequestBody struct {
	FileID int `json:"file_id"`
}

type osDownloadResponse struct {
	Link     string `json:"link"`
	FileName string `json:"file_name"`
}

func (p *OpenSubtitlesProvider) DownloadSubtitle(ctx context.Context, fileID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultDownloadTimeout)
	defer cancel()

	privateID := PrivateID(fileID)
	id, err := strconv.Atoi(privateID)
	if err != nil {
		return SentinelInvalid, nil
	}

	var content []byte
	err = retry.Do(
		func() error {
			payload, _ := json.Marshal(osDownloadRequestBody{FileID: id})
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, openSubtitlesBaseURL+"/download", strings.NewReader(string(payload)))
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("Api-Key", p.cfg.APIKey)
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("User-Agent", p.cfg.UserAgent)

			resp, err := p.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusNotFound {
				return retry.Unrecoverable(fmt.Errorf("opensubtitles download not found"))
			}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return fmt.Errorf("opensubtitles download transient status %d", resp.StatusCode)
			}
			if resp.StatusCode != http.StatusOK {
				return retry.Unrecoverable(fmt.Errorf("opensubtitles download status %d", resp.StatusCode))
			}

			var dl osDownloadResponse
			if err := json.NewDecoder(resp.Body).Decode(&dl); err != nil {
				return retry.Unrecoverable(err)
			}

			fileReq, err := http.NewRequestWithContext(ctx, http.MethodGet, dl.Link, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			fileResp, err := p.httpClient.Do(fileReq)
			if err != nil {
				return err
			}
			defer fileResp.Body.Close()

			body, err := io.ReadAll(fileResp.Body)
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

// decodeDownloadedBytes applies the minimum-size check and, when the
// response is an archive, extracts the embedded subtitle.
func decodeDownloadedBytes(content []byte) (string, error) {
	const minSubtitleSizeBytes = 200

	if IsArchive(content) {
		text, err := ExtractSubtitle(content)
		if err != nil {
			if err == ErrArchiveTooLarge {
				return SentinelArchiveTooLarge, nil
			}
			return SentinelInvalid, nil
		}
		content = []byte(text)
	}

	if len(content) < minSubtitleSizeBytes {
		return SentinelInvalid, nil
	}
	return string(content), nil
}
