// Package embed provides the HTTP handlers for metadata extraction, image
// probing and URI status checks.
package embed

import (
	"context"
	"net/http"
	"strings"
	"time"

	"Embedkit/internal/core/embed"
	"Embedkit/internal/core/imageprobe"
	"Embedkit/internal/core/meta"
	"Embedkit/internal/core/uristatus"
)

// ImageProber reads image dimensions. *imageprobe.Prober satisfies it.
type ImageProber interface {
	Probe(ctx context.Context, uri string, opts imageprobe.Options) (*imageprobe.Info, error)
}

// StatusChecker resolves URI status codes. *uristatus.Checker satisfies it.
type StatusChecker interface {
	Check(ctx context.Context, uri string, opts uristatus.Options) (*uristatus.Status, error)
}

// WhitelistInfo describes the loaded whitelist. *whitelist.Store satisfies it.
type WhitelistInfo interface {
	Len() int
	LoadedAt() time.Time
}

// Handler serves the extraction API.
type Handler struct {
	service       embed.Service
	prober        ImageProber
	checker       StatusChecker
	whitelist     WhitelistInfo
	providerStats func() map[string]meta.ProviderStats
}

// HandlerOption configures the handler
type HandlerOption func(*Handler)

// WithWhitelistInfo reports whitelist state on /health
func WithWhitelistInfo(w WhitelistInfo) HandlerOption {
	return func(h *Handler) {
		h.whitelist = w
	}
}

// WithProviderStats reports oEmbed circuit state on /health
func WithProviderStats(stats func() map[string]meta.ProviderStats) HandlerOption {
	return func(h *Handler) {
		h.providerStats = stats
	}
}

// NewHandler creates an extraction handler
func NewHandler(service embed.Service, prober ImageProber, checker StatusChecker, opts ...HandlerOption) *Handler {
	h := &Handler{
		service: service,
		prober:  prober,
		checker: checker,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleExtract handles GET /iframely?uri=
func (h *Handler) HandleExtract(w http.ResponseWriter, r *http.Request) {
	uri := requiredParam(w, r, "uri")
	if uri == "" {
		return
	}

	result, err := h.service.Extract(r.Context(), uri, extractOptions(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleOEmbed handles GET /oembed?url=
func (h *Handler) HandleOEmbed(w http.ResponseWriter, r *http.Request) {
	uri := requiredParam(w, r, "url")
	if uri == "" {
		return
	}

	result, err := h.service.Extract(r.Context(), uri, extractOptions(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, embed.ToOEmbed(result))
}

// HandleImage handles GET /image?uri=
func (h *Handler) HandleImage(w http.ResponseWriter, r *http.Request) {
	uri := requiredParam(w, r, "uri")
	if uri == "" {
		return
	}

	info, err := h.prober.Probe(r.Context(), uri, imageprobe.Options{
		DisableCache: isTrue(r.URL.Query().Get("refresh")),
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// HandleStatus handles GET /status?uri=. Fetch failures are part of the
// body, so the endpoint answers 200 whenever the check ran.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	uri := requiredParam(w, r, "uri")
	if uri == "" {
		return
	}

	status, err := h.checker.Check(r.Context(), uri, uristatus.Options{
		DisableCache: isTrue(r.URL.Query().Get("refresh")),
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// HealthResponse is the /health body
type HealthResponse struct {
	Status    string                        `json:"status"`
	Whitelist *WhitelistHealth              `json:"whitelist,omitempty"`
	Providers map[string]meta.ProviderStats `json:"providers,omitempty"`
}

// WhitelistHealth summarizes the loaded whitelist
type WhitelistHealth struct {
	Domains  int        `json:"domains"`
	LoadedAt *time.Time `json:"loadedAt,omitempty"`
}

// HandleHealth handles GET /health
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}
	if h.whitelist != nil {
		wh := &WhitelistHealth{Domains: h.whitelist.Len()}
		if loaded := h.whitelist.LoadedAt(); !loaded.IsZero() {
			wh.LoadedAt = &loaded
		}
		resp.Whitelist = wh
	}
	if h.providerStats != nil {
		resp.Providers = h.providerStats()
	}
	writeJSON(w, http.StatusOK, resp)
}

func requiredParam(w http.ResponseWriter, r *http.Request, name string) string {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		writeError(w, http.StatusBadRequest, "InvalidRequest", name+" parameter is required")
	}
	return v
}

func extractOptions(r *http.Request) embed.Options {
	return embed.Options{SkipImageProbe: isFalse(r.URL.Query().Get("probe"))}
}

func isTrue(v string) bool {
	return v == "1" || strings.EqualFold(v, "true")
}

func isFalse(v string) bool {
	return v == "0" || strings.EqualFold(v, "false")
}
