package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/beacon-library/beacon-agent/internal/agent/config"
	"github.com/beacon-library/beacon-agent/internal/agent/sync"
	"github.com/beacon-library/beacon-agent/internal/agent/workspace"
	"github.com/beacon-library/beacon-agent/internal/beaconsdk"
	"github.com/beacon-library/beacon-agent/internal/version"
	"golang.org/x/sync/errgroup"
)

// Agent glues config, workspace, SDK, and the sync engine into one runnable
// unit. Start blocks until the context is cancelled.
type Agent struct {
	cfg *config.Config
	ws  *workspace.Workspace
	sdk *beaconsdk.BeaconSDK
	mgr *sync.Manager
}

func New(cfg *config.Config) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ws, err := workspace.New(cfg.SyncFolder)
	if err != nil {
		return nil, err
	}

	var tokenSource beaconsdk.TokenSource
	if cfg.RefreshToken != "" {
		tokenSource = &beaconsdk.OIDCTokenSource{
			TokenURL:     cfg.TokenURL,
			ClientID:     cfg.ClientID,
			RefreshToken: cfg.RefreshToken,
			OnRefresh: func(refreshToken string) {
				// persist the rotated token so the next start can still log in
				cfg.RefreshToken = refreshToken
				if cfg.Path != "" {
					if err := cfg.Save(cfg.Path); err != nil {
						slog.Error("config save failed", "error", err)
					}
				}
			},
		}
	}

	sdk, err := beaconsdk.New(&beaconsdk.Config{
		BaseURL:     cfg.ServerURL,
		TokenSource: tokenSource,
	})
	if err != nil {
		return nil, err
	}

	return &Agent{
		cfg: cfg,
		ws:  ws,
		sdk: sdk,
	}, nil
}

func (a *Agent) Start(ctx context.Context) error {
	slog.Info("agent start", "version", version.Version, "folder", a.ws.Root, "server", a.cfg.ServerURL)

	if err := a.ws.Setup(); err != nil {
		return err
	}
	defer a.ws.Unlock()

	if err := a.ensureLibraries(ctx); err != nil {
		return err
	}

	mgr, err := sync.NewManager(a.cfg, a.ws, a.sdk)
	if err != nil {
		return err
	}
	a.mgr = mgr

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		if err := a.mgr.Start(egCtx); err != nil {
			return fmt.Errorf("start sync manager: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egCtx.Done()
		slog.Info("shutting down")
		return a.stop()
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("agent failure", "error", err)
		return err
	}

	slog.Info("agent stopped")
	return nil
}

// Manager exposes the sync engine for status and conflict commands.
func (a *Agent) Manager() *sync.Manager {
	return a.mgr
}

func (a *Agent) stop() error {
	var err error
	if a.mgr != nil {
		err = a.mgr.Stop()
	}
	a.sdk.Close()
	return err
}

// ensureLibraries fills an empty library list from the server so a fresh
// install syncs everything the account can see.
func (a *Agent) ensureLibraries(ctx context.Context) error {
	if len(a.cfg.Libraries) > 0 {
		return nil
	}

	resp, err := a.sdk.Libraries.List(ctx)
	if err != nil {
		return fmt.Errorf("list libraries: %w", err)
	}
	for _, lib := range resp.Items {
		a.cfg.Libraries = append(a.cfg.Libraries, config.LibraryRef{ID: lib.ID, Name: lib.Name})
	}
	if len(a.cfg.Libraries) == 0 {
		return errors.New("account has no libraries to sync")
	}

	if a.cfg.Path != "" {
		if err := a.cfg.Save(a.cfg.Path); err != nil {
			slog.Warn("config save failed", "error", err)
		}
	}

	slog.Info("discovered libraries", "count", len(a.cfg.Libraries))
	return nil
}
