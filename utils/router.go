// Package utils holds small cross-cutting helpers shared by main.go and
// the handlers/api packages.
package utils

import "github.com/gorilla/mux"

// NewRouter builds the root mux.Router with the addon's routing
// conventions: strict-slash redirection off (fileIds and language codes
// can contain characters that make trailing-slash redirects surprising).
func NewRouter() *mux.Router {
	r := mux.NewRouter()
	r.StrictSlash(false)
	return r
}
