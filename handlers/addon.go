package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"subaddon/internal/addon"
	"subaddon/internal/orchestrator"
	"subaddon/models"
)

// AddonHandler serves the addon facade's list/download/translate operations over HTTP.
type AddonHandler struct {
	facade                *addon.Facade
	minSubtitleSizeBytes  int
	translationModel      string
	chunkTokenBudget      int
	streamingTranslation  bool
	bypassCacheEnabled    bool
}

// AddonHandlerOptions carries the per-request translation defaults
// sourced from config.Settings.
type AddonHandlerOptions struct {
	MinSubtitleSizeBytes int
	TranslationModel     string
	ChunkTokenBudget     int
	StreamingTranslation bool
	BypassCacheEnabled   bool
}

func NewAddonHandler(facade *addon.Facade, opts AddonHandlerOptions) *AddonHandler {
	return &AddonHandler{
		facade:               facade,
		minSubtitleSizeBytes: opts.MinSubtitleSizeBytes,
		translationModel:     opts.TranslationModel,
		chunkTokenBudget:     opts.ChunkTokenBudget,
		streamingTranslation: opts.StreamingTranslation,
		bypassCacheEnabled:   opts.BypassCacheEnabled,
	}
}

// List handles GET /subtitles/{type}/{imdbId}.json — optional "season",
// "episode", and "filename" query parameters refine the request.
func (h *AddonHandler) List(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	params := models.SearchParams{
		ImdbID:         strings.TrimSuffix(vars["imdbId"], ".json"),
		Type:           vars["type"],
		StreamFilename: r.URL.Query().Get("filename"),
	}
	if s := r.URL.Query().Get("season"); s != "" {
		params.Season, _ = strconv.Atoi(s)
	}
	if e := r.URL.Query().Get("episode"); e != "" {
		params.Episode, _ = strconv.Atoi(e)
	}
	if langs := r.URL.Query().Get("languages"); langs != "" {
		params.Languages = strings.Split(langs, ",")
	}

	result := h.facade.ListSubtitles(r.Context(), params, 0)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

// Download handles GET /subtitle/{fileId}/{langCode}.srt.
func (h *AddonHandler) Download(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	fileID := vars["fileId"]
	content := h.facade.DownloadSubtitle(r.Context(), fileID)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(content))
}

// Translate handles GET /translate/{sourceFileId}/{targetLang}.
func (h *AddonHandler) Translate(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sourceFileID := vars["sourceFileId"]
	targetLang := vars["targetLang"]

	cfg := orchestrator.Config{
		BypassEnabled:        h.bypassCacheEnabled,
		UserHash:             userHashFromRequest(r),
		MinSubtitleSizeBytes: h.minSubtitleSizeBytes,
		Model:                h.translationModel,
		ChunkBudget:          h.chunkTokenBudget,
		Streaming:            h.streamingTranslation,
	}

	content := h.facade.Translate(r.Context(), sourceFileID, targetLang, cfg)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(content))
}

// userHashFromRequest reads the __configHash query parameter that scopes
// bypass-cache entries to the requesting user. A request with no
// __configHash yields "", which the cache store and orchestrator always
// treat as an unconditional miss for the bypass partition rather than as a
// shared anonymous identity.
func userHashFromRequest(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("__configHash"))
}
