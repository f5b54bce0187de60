package web

import (
	"embed"
	"net/http"

	"github.com/rs/zerolog"
)

//go:embed pages/*.html
var pagesFS embed.FS

// page serves an embedded portal page.
func (h *Handler) page(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := pagesFS.ReadFile("pages/" + name)
		if err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Str("page", name).Msg("portal page missing")
			WriteError(w, http.StatusInternalServerError, "internal_error", "page unavailable")
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(data)
	}
}
