// Package api mounts the addon's HTTP surface onto a gorilla/mux router,
// using a CORS-middleware-plus-
// per-handler-method-registration pattern.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"subaddon/handlers"
)

// corsMiddleware handles CORS for the addon's HTTP surface, since
// stremio-style clients call list/download/translate directly from a
// browser-embedded player.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func handleOptions(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// Register mounts the addon's list/download/translate endpoints.
func Register(r *mux.Router, addonHandler *handlers.AddonHandler) {
	r.Use(corsMiddleware)

	r.HandleFunc("/subtitles/{type}/{imdbId}", addonHandler.List).Methods(http.MethodGet)
	r.HandleFunc("/subtitles/{type}/{imdbId}", handleOptions).Methods(http.MethodOptions)

	r.HandleFunc("/subtitle/{fileId}/{langCode}.srt", addonHandler.Download).Methods(http.MethodGet)
	r.HandleFunc("/subtitle/{fileId}/{langCode}.srt", handleOptions).Methods(http.MethodOptions)

	r.HandleFunc("/translate/{sourceFileId}/{targetLang}", addonHandler.Translate).Methods(http.MethodGet)
	r.HandleFunc("/translate/{sourceFileId}/{targetLang}", handleOptions).Methods(http.MethodOptions)
}
