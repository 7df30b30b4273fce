package routes

import (
	"github.com/go-chi/chi/v5"

	embedhandlers "Embedkit/internal/api/handlers/embed"
)

// RegisterEmbedRoutes registers the extraction endpoints on the router.
//
// Routes:
//   - GET /iframely?uri=  meta and links for a page
//   - GET /oembed?url=    oEmbed-shaped view of the best link
//   - GET /image?uri=     image format and dimensions
//   - GET /status?uri=    final status code of a URI
//
// Each accepts refresh=true to bypass the cache where one applies;
// /iframely and /oembed accept probe=false to skip image probing.
func RegisterEmbedRoutes(r chi.Router, handler *embedhandlers.Handler) {
	r.Get("/iframely", handler.HandleExtract)
	r.Get("/oembed", handler.HandleOEmbed)
	r.Get("/image", handler.HandleImage)
	r.Get("/status", handler.HandleStatus)
}

// RegisterHealthRoutes registers GET /health, which stays outside rate limiting.
func RegisterHealthRoutes(r chi.Router, handler *embedhandlers.Handler) {
	r.Get("/health", handler.HandleHealth)
}
