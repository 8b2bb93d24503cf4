package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"repoinsight/internal/archive"
	"repoinsight/internal/aspect"
	"repoinsight/internal/fingerprint"
	"repoinsight/internal/report"
	"repoinsight/internal/store"
	"repoinsight/internal/tree"
)

// Handler serves reports over a fingerprint store. Tags and scores are derived
// on every request. Raw analysis runs are read back from the archive.
type Handler struct {
	store    store.FingerprintStore
	registry *aspect.Registry
	archive  archive.Archive
}

func NewHandler(s store.FingerprintStore, reg *aspect.Registry, arch archive.Archive) *Handler {
	return &Handler{store: s, registry: reg, archive: arch}
}

type aspectInfo struct {
	Name        string                     `json:"name"`
	DisplayName string                     `json:"displayName,omitempty"`
	BaseOnly    bool                       `json:"baseOnly,omitempty"`
	Details     *fingerprint.ReportDetails `json:"details,omitempty"`
}

func (h *Handler) HandleTags(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.AvailableTags())
}

func (h *Handler) HandleAspects(w http.ResponseWriter, _ *http.Request) {
	aspects := h.registry.Aspects()
	out := make([]aspectInfo, 0, len(aspects))
	for _, a := range aspects {
		out = append(out, aspectInfo{Name: a.Name, DisplayName: a.DisplayName, BaseOnly: a.BaseOnly, Details: a.Details})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) HandleKinds(w http.ResponseWriter, r *http.Request) {
	kinds, err := h.store.DistinctFingerprintKinds(r.Context(), workspace(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if kinds == nil {
		kinds = []fingerprint.Kind{}
	}
	writeJSON(w, http.StatusOK, kinds)
}

// HandleUsage lists fingerprint usage of a workspace, optionally narrowed to
// one type and one entropy band.
func (h *Handler) HandleUsage(w http.ResponseWriter, r *http.Request) {
	kind := store.AllKinds
	if typ := strings.TrimSpace(r.URL.Query().Get("type")); typ != "" {
		kind = typ
	}
	var band fingerprint.EntropyBand
	if raw := r.URL.Query().Get("band"); raw != "" {
		b, ok := fingerprint.ParseEntropyBand(raw)
		if !ok {
			http.Error(w, "unknown entropy band "+strconv.Quote(raw), http.StatusBadRequest)
			return
		}
		band = b
	}
	usage, err := h.store.FingerprintUsage(r.Context(), workspace(r), kind)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]fingerprint.FingerprintUsage, 0, len(usage))
	for _, u := range usage {
		if band == "" || u.EntropyBand == band {
			out = append(out, u)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) HandleCategories(w http.ResponseWriter, r *http.Request) {
	ws := workspace(r)
	repos, err := h.store.LoadRepos(r.Context(), store.Filter{WorkspaceID: ws})
	if err != nil {
		writeError(w, r, err)
		return
	}
	usage, err := h.store.FingerprintUsage(r.Context(), ws, store.AllKinds)
	if err != nil {
		writeError(w, r, err)
		return
	}
	in := make([]report.RepoFingerprints, 0, len(repos))
	for _, ra := range repos {
		rf := report.RepoFingerprints{Owner: ra.ID.Owner, Repo: ra.ID.Repo}
		seen := map[fingerprint.Kind]bool{}
		for _, fp := range ra.Fingerprints {
			if k := fp.Kind(); !seen[k] {
				seen[k] = true
				rf.Fingerprints = append(rf.Fingerprints, k)
			}
		}
		in = append(in, rf)
	}
	reports, err := report.AspectReports(r.Context(), in, usage, h.registry, ws)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

// HandleFingerprintTree serves the fingerprint -> value -> repo tree. A name
// of "*" selects every fingerprint of the type. otherLabel adds the branch of
// repos without the fingerprint under that label.
func (h *Handler) HandleFingerprintTree(w http.ResponseWriter, r *http.Request) {
	typ := r.PathValue("type")
	name := r.PathValue("name")
	q := tree.Query{
		WorkspaceID: workspace(r),
		AspectName:  typ,
		RootName:    name,
		ByName:      name != "*",
	}
	if raw := r.URL.Query().Get("byName"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			http.Error(w, "byName must be a boolean", http.StatusBadRequest)
			return
		}
		q.ByName = v
	}
	if r.URL.Query().Has("otherLabel") {
		q.IncludeWithout = true
		if label := strings.TrimSpace(r.URL.Query().Get("otherLabel")); label != "" && label != "true" {
			q.WithoutLabel = label
		}
	}

	display := fingerprint.Aspect{}.DisplayValue
	if a, ok := h.registry.AspectOf(typ); ok {
		display = a.DisplayValue
	}
	pt, err := tree.FingerprintsToReposTree(r.Context(), h.store, q, display)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pt)
}

// HandleAnalyses lists the archive keys of a workspace's analysis runs.
func (h *Handler) HandleAnalyses(w http.ResponseWriter, r *http.Request) {
	ws := workspace(r)
	if store.IsAllWorkspaces(ws) {
		http.Error(w, "analyses are listed per workspace", http.StatusBadRequest)
		return
	}
	keys, err := h.archive.List(r.Context(), ws)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if keys == nil {
		keys = []string{}
	}
	writeJSON(w, http.StatusOK, keys)
}

// HandleAnalysis returns the archived analysis run of one repo, failures included.
func (h *Handler) HandleAnalysis(w http.ResponseWriter, r *http.Request) {
	ref := fingerprint.RepoRef{Owner: r.PathValue("owner"), Repo: r.PathValue("repo")}
	an, err := archive.Load(r.Context(), h.archive, workspace(r), ref)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, an)
}

func (h *Handler) HandleRepos(w http.ResponseWriter, r *http.Request) {
	scored, err := h.scoredRepos(r, r.URL.Query().Get("category"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scored)
}

func (h *Handler) HandleWorkspaceScore(w http.ResponseWriter, r *http.Request) {
	ws := workspace(r)
	scored, err := h.scoredRepos(r, "")
	if err != nil {
		writeError(w, r, err)
		return
	}
	usage, err := h.store.FingerprintUsage(r.Context(), ws, store.AllKinds)
	if err != nil {
		writeError(w, r, err)
		return
	}
	score, err := h.registry.ScoreWorkspace(r.Context(), ws, aspect.WorkspaceSummary(usage, scored))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, score)
}

func (h *Handler) scoredRepos(r *http.Request, category string) ([]aspect.ScoredRepo, error) {
	ws := workspace(r)
	repos, err := h.store.LoadRepos(r.Context(), store.Filter{WorkspaceID: ws})
	if err != nil {
		return nil, err
	}
	in := make([]aspect.RepoToScore, 0, len(repos))
	for _, ra := range repos {
		in = append(in, ra.Analyzed)
	}
	return h.registry.TagAndScoreRepos(r.Context(), ws, in, aspect.TagAndScoreOptions{Category: category})
}

func workspace(r *http.Request) string {
	ws := strings.TrimSpace(r.PathValue("workspace"))
	if ws == "" {
		return store.AllWorkspaces
	}
	return ws
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, archive.ErrNotFound) {
		status = http.StatusNotFound
	}
	log.Printf("api: %s %s: %v", r.Method, r.URL.Path, err)
	http.Error(w, err.Error(), status)
}
