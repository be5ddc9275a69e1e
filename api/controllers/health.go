package controllers

import (
	"net/http"

	"github.com/verdana-market/verdana-backend/api/responses"
	"github.com/verdana-market/verdana-backend/pkg/config"
	"github.com/verdana-market/verdana-backend/pkg/db"
	pkgerrors "github.com/verdana-market/verdana-backend/pkg/errors"
	"github.com/verdana-market/verdana-backend/pkg/logger"
	"github.com/verdana-market/verdana-backend/pkg/metrics"
	"github.com/verdana-market/verdana-backend/pkg/outbox"
	"github.com/verdana-market/verdana-backend/pkg/redis"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Verdana-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings the backing stores and refreshes the outbox backlog
// gauge so a stalled publisher surfaces before it pages anyone.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbPinger db.Pinger, redisPinger redis.Pinger, outboxRepo *outbox.Repository, settlementMetrics *metrics.SettlementMetrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Verdana-Env", cfg.App.Env)
		ctx := r.Context()

		if dbPinger != nil {
			if err := dbPinger.Ping(ctx); err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database unavailable"))
				return
			}
		}
		if redisPinger != nil {
			if err := redisPinger.Ping(ctx); err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis unavailable"))
				return
			}
		}

		payload := map[string]any{"status": "ready"}
		if outboxRepo != nil {
			backlog, err := outboxRepo.CountUnpublished(ctx)
			if err != nil {
				logg.Warn(ctx, "health.outbox_backlog_unavailable")
			} else {
				payload["outbox_backlog"] = backlog
				if settlementMetrics != nil {
					settlementMetrics.SetBacklog(backlog)
				}
			}
		}
		responses.WriteSuccess(w, payload)
	}
}
