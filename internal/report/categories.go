package report

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"repoinsight/internal/fingerprint"
)

// Registry is the part of the aspect registry the aggregator reads.
type Registry interface {
	Aspects() []fingerprint.Aspect
	AspectOf(typ string) (fingerprint.Aspect, bool)
	ReportDetailsOf(ctx context.Context, typ, workspaceID string) (*fingerprint.ReportDetails, error)
}

// RepoFingerprints is the flat input of AspectReports: the fingerprint kinds present in one repo.
type RepoFingerprints struct {
	Owner        string
	Repo         string
	Fingerprints []fingerprint.Kind
}

// EntropyBands counts, per fingerprint type, how many of its kinds fall in each band.
type EntropyBands struct {
	Type   string `json:"type"`
	Zero   int    `json:"zero"`
	Low    int    `json:"low"`
	Medium int    `json:"medium"`
	High   int    `json:"high"`
}

func (e *EntropyBands) add(b fingerprint.EntropyBand) {
	switch b {
	case fingerprint.EntropyZero:
		e.Zero++
	case fingerprint.EntropyLow:
		e.Low++
	case fingerprint.EntropyMedium:
		e.Medium++
	case fingerprint.EntropyHigh:
		e.High++
	}
}

type ReportDetail struct {
	Name         string        `json:"name"`
	Type         string        `json:"type"`
	Description  string        `json:"description,omitempty"`
	ShortName    string        `json:"shortName,omitempty"`
	Unit         string        `json:"unit,omitempty"`
	URL          string        `json:"url"`
	Manage       bool          `json:"manage"`
	Order        int           `json:"order"`
	EntropyBands *EntropyBands `json:"entropyBands,omitempty"`
}

type AspectReport struct {
	Category string         `json:"category"`
	Count    int            `json:"count"`
	Aspects  []ReportDetail `json:"aspects"`
}

// detailsMemo resolves report details at most once per type for one aggregation.
type detailsMemo struct {
	reg         Registry
	workspaceID string

	group singleflight.Group
	mu    sync.Mutex
	done  map[string]fingerprint.ReportDetails
}

func (m *detailsMemo) get(ctx context.Context, typ string) (fingerprint.ReportDetails, error) {
	m.mu.Lock()
	d, ok := m.done[typ]
	m.mu.Unlock()
	if ok {
		return d, nil
	}
	v, err, _ := m.group.Do(typ, func() (any, error) {
		m.mu.Lock()
		d, ok := m.done[typ]
		m.mu.Unlock()
		if ok {
			return d, nil
		}
		rd, err := m.reg.ReportDetailsOf(ctx, typ, m.workspaceID)
		if err != nil {
			return nil, fmt.Errorf("report details of %s: %w", typ, err)
		}
		d = fingerprint.ReportDetails{}
		if rd != nil {
			d = *rd
		}
		m.mu.Lock()
		m.done[typ] = d
		m.mu.Unlock()
		return d, nil
	})
	if err != nil {
		return fingerprint.ReportDetails{}, err
	}
	return v.(fingerprint.ReportDetails), nil
}

// entropyOrder ranks fingerprint types by band dominance: most high kinds
// first, then medium, low and zero.
func entropyOrder(usage []fingerprint.FingerprintUsage) []*EntropyBands {
	byType := map[string]*EntropyBands{}
	for _, fu := range usage {
		e, ok := byType[fu.Type]
		if !ok {
			e = &EntropyBands{Type: fu.Type}
			byType[fu.Type] = e
		}
		e.add(fu.EntropyBand)
	}
	out := make([]*EntropyBands, 0, len(byType))
	for _, e := range byType {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.High != b.High {
			return a.High > b.High
		}
		if a.Medium != b.Medium {
			return a.Medium > b.Medium
		}
		if a.Low != b.Low {
			return a.Low > b.Low
		}
		if a.Zero != b.Zero {
			return a.Zero > b.Zero
		}
		return a.Type < b.Type
	})
	return out
}

// AspectReports groups the fingerprint kinds found in repos by report category.
// Kinds without a category are left out. Kinds and categories are ordered by
// aspect registration order.
func AspectReports(ctx context.Context, repos []RepoFingerprints, usage []fingerprint.FingerprintUsage, reg Registry, workspaceID string) ([]AspectReport, error) {
	memo := &detailsMemo{reg: reg, workspaceID: workspaceID, done: map[string]fingerprint.ReportDetails{}}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(16)
	for _, r := range repos {
		for _, k := range r.Fingerprints {
			g.Go(func() error {
				_, err := memo.get(gctx, k.Type)
				return err
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	details := memo.done

	order := entropyOrder(usage)
	position := make(map[string]int, len(order))
	for i, e := range order {
		position[e.Type] = i
	}

	aspects := reg.Aspects()
	typeRank := make(map[string]int, len(aspects))
	categoryRank := map[string]int{}
	for i, a := range aspects {
		typeRank[a.Name] = i
		if a.Details == nil || a.Details.Category == "" {
			continue
		}
		if _, ok := categoryRank[a.Details.Category]; !ok {
			categoryRank[a.Details.Category] = i
		}
	}

	var categories []string
	seenCategory := map[string]bool{}
	for _, r := range repos {
		for _, k := range r.Fingerprints {
			c := details[k.Type].Category
			if c == "" || seenCategory[c] {
				continue
			}
			seenCategory[c] = true
			categories = append(categories, c)
		}
	}

	reports := make([]AspectReport, 0, len(categories))
	for _, c := range categories {
		count := 0
		var types []string
		seenType := map[string]bool{}
		for _, r := range repos {
			in := false
			for _, k := range r.Fingerprints {
				if details[k.Type].Category != c {
					continue
				}
				in = true
				if !seenType[k.Type] {
					seenType[k.Type] = true
					types = append(types, k.Type)
				}
			}
			if in {
				count++
			}
		}

		var rows []ReportDetail
		seenURL := map[string]bool{}
		for _, typ := range types {
			row := reportDetail(reg, typ, details[typ], workspaceID)
			if seenURL[row.URL] {
				continue
			}
			seenURL[row.URL] = true
			if i, ok := position[typ]; ok {
				row.Order = i
				e := *order[i]
				row.EntropyBands = &e
			} else {
				row.Order = -1
			}
			rows = append(rows, row)
		}
		sort.SliceStable(rows, func(i, j int) bool {
			return rankLess(typeRank, rows[i].Type, rows[j].Type)
		})
		reports = append(reports, AspectReport{Category: c, Count: count, Aspects: rows})
	}

	sort.SliceStable(reports, func(i, j int) bool {
		return rankLess(categoryRank, reports[i].Category, reports[j].Category)
	})
	return reports, nil
}

func reportDetail(reg Registry, typ string, rd fingerprint.ReportDetails, workspaceID string) ReportDetail {
	name, kind := rd.ShortName, typ
	if a, ok := reg.AspectOf(typ); ok {
		kind = a.Name
		if a.DisplayName != "" {
			name = a.DisplayName
		}
	}
	if name == "" {
		name = kind
	}
	url := strings.TrimPrefix(rd.URL, "/")
	if url == "" {
		url = "fingerprint/" + typ + "/*"
	}
	return ReportDetail{
		Name:        name,
		Type:        kind,
		Description: rd.Description,
		ShortName:   rd.ShortName,
		Unit:        rd.Unit,
		URL:         fmt.Sprintf("/api/v1/%s/%s", workspaceID, url),
		Manage:      rd.Managed(),
	}
}

// rankLess orders ranked keys first by rank, then unranked keys by name.
func rankLess(rank map[string]int, a, b string) bool {
	ra, okA := rank[a]
	rb, okB := rank[b]
	switch {
	case okA && okB:
		if ra != rb {
			return ra < rb
		}
		return a < b
	case okA:
		return true
	case okB:
		return false
	default:
		return a < b
	}
}
