// Command analyze fingerprints local repositories, stores the results and
// prints their tags and scores as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"repoinsight/internal/analysis"
	"repoinsight/internal/app"
	"repoinsight/internal/archive"
	"repoinsight/internal/aspect"
	"repoinsight/internal/config"
	"repoinsight/internal/fingerprint"
	"repoinsight/internal/project"
	"repoinsight/internal/store"
)

func main() {
	workspace := flag.String("workspace", "local", "workspace the analyzed repos belong to")
	owner := flag.String("owner", "", "owner of the analyzed repos (default: parent directory name)")
	category := flag.String("category", "*", "only run scorers of this category")
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	dirs := flag.Args()
	if len(dirs) == 0 {
		log.Fatalf("usage: analyze [-workspace id] [-owner name] dir...")
	}
	if *workspace == store.AllWorkspaces {
		log.Fatalf("workspace %q is reserved", store.AllWorkspaces)
	}

	a, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize app: %v", err)
	}
	defer a.Store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	projects := make([]fingerprint.Project, 0, len(dirs))
	for _, dir := range dirs {
		p, err := project.Open(dir, fingerprint.RepoRef{Owner: *owner})
		if err != nil {
			log.Fatalf("Failed to open %s: %v", dir, err)
		}
		projects = append(projects, p)
	}

	results, err := analysis.NewAnalyzer(a.Registry.Aspects()).AnalyzeAll(ctx, projects)
	if err != nil {
		log.Fatalf("Analysis failed: %v", err)
	}

	repos := make([]aspect.RepoToScore, 0, len(results))
	for _, res := range results {
		err := a.Store.Persist(ctx, store.RepoAnalysis{
			WorkspaceID: *workspace,
			Analyzed:    res.Analyzed,
			Timestamp:   res.Timestamp,
		})
		if err != nil {
			log.Fatalf("Failed to persist %s: %v", res.ID.Key(), err)
		}
		if key, err := archive.Save(ctx, a.Archive, *workspace, res); err != nil {
			log.Printf("analyze: archive %s: %v", res.ID.Key(), err)
		} else {
			log.Printf("analyze: %s: %d fingerprints, %d failures, archived at %s", res.ID.Key(), len(res.Fingerprints), len(res.Failures), key)
		}
		repos = append(repos, res.Analyzed)
	}
	a.Registry.InvalidateWorkspace(*workspace)

	scored, err := a.Registry.TagAndScoreRepos(ctx, *workspace, repos, aspect.TagAndScoreOptions{Category: *category})
	if err != nil {
		log.Fatalf("Scoring failed: %v", err)
	}
	for _, s := range scored {
		log.Printf("analyze: %s: %d tags, scored by %v", s.ID.Key(), len(s.Tags), s.WeightedScore.Applicable())
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(scored); err != nil {
		log.Fatalf("Failed to write results: %v", err)
	}
}
