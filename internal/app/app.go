package app

import (
	"context"
	"fmt"

	"repoinsight/internal/api"
	"repoinsight/internal/archive"
	"repoinsight/internal/aspect"
	"repoinsight/internal/aspect/builtin"
	"repoinsight/internal/config"
	"repoinsight/internal/store"
)

// App holds the wired dependencies shared by the server and the analyze CLI.
type App struct {
	Config   *config.Config
	Store    store.Store
	Registry *aspect.Registry
	Archive  archive.Archive

	server *api.Server
}

func New(cfg *config.Config) (*App, error) {
	st, err := initStore(cfg)
	if err != nil {
		return nil, err
	}
	arch, err := initArchive(cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	regCfg := builtin.Config(st)
	regCfg.PredicateCacheSize = cfg.WorkspaceTaggerCacheSize
	reg, err := aspect.NewRegistry(regCfg)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to build aspect registry: %w", err)
	}
	return &App{
		Config:   cfg,
		Store:    st,
		Registry: reg,
		Archive:  arch,
		server:   api.New(cfg.Port, api.NewMux(api.NewHandler(st, reg, arch))),
	}, nil
}

func (a *App) Start() error {
	return a.server.Start()
}

func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	if cerr := a.Store.Close(); err == nil {
		err = cerr
	}
	return err
}
