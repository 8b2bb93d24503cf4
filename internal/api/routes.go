package api

import "net/http"

func NewMux(h *Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/tags", h.HandleTags)
	mux.HandleFunc("GET /api/v1/aspects", h.HandleAspects)
	mux.HandleFunc("GET /api/v1/{workspace}/categories", h.HandleCategories)
	mux.HandleFunc("GET /api/v1/{workspace}/kinds", h.HandleKinds)
	mux.HandleFunc("GET /api/v1/{workspace}/usage", h.HandleUsage)
	mux.HandleFunc("GET /api/v1/{workspace}/fingerprint/{type}/{name}", h.HandleFingerprintTree)
	mux.HandleFunc("GET /api/v1/{workspace}/repos", h.HandleRepos)
	mux.HandleFunc("GET /api/v1/{workspace}/analyses", h.HandleAnalyses)
	mux.HandleFunc("GET /api/v1/{workspace}/analyses/{owner}/{repo}", h.HandleAnalysis)
	mux.HandleFunc("GET /api/v1/{workspace}/score", h.HandleWorkspaceScore)

	return CORS(mux)
}
