package controllers

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/atmosfood/storefront-backend/api/responses"
	"github.com/atmosfood/storefront-backend/pkg/config"
	pkgerrors "github.com/atmosfood/storefront-backend/pkg/errors"
	"github.com/atmosfood/storefront-backend/pkg/logger"
)

const readyTimeout = 2 * time.Second

// Pinger is a dependency checked by the readiness endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

type catalogState interface {
	Loaded() bool
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Atmos-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings the database and redis in parallel. The catalog state is
// reported but does not fail readiness; an empty menu is served until the
// next restart.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbPinger, redisPinger Pinger, menu catalogState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Atmos-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		g, gctx := errgroup.WithContext(ctx)
		checks := map[string]Pinger{"database": dbPinger, "redis": redisPinger}
		for name, p := range checks {
			if p == nil {
				continue
			}
			g.Go(func() error {
				if err := p.Ping(gctx); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unavailable")
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payload := map[string]any{"status": "ready"}
		if menu != nil {
			payload["catalogLoaded"] = menu.Loaded()
		}
		responses.WriteSuccess(w, payload)
	}
}
