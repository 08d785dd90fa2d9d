package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/escolar/internal/backup"
	"github.com/smallbiznis/escolar/internal/clock"
	"github.com/smallbiznis/escolar/internal/config"
	"github.com/smallbiznis/escolar/internal/executionlog"
	"github.com/smallbiznis/escolar/internal/export"
	"github.com/smallbiznis/escolar/internal/invoice"
	"github.com/smallbiznis/escolar/internal/migration"
	"github.com/smallbiznis/escolar/internal/observability"
	"github.com/smallbiznis/escolar/internal/providers"
	"github.com/smallbiznis/escolar/internal/ratelimit"
	"github.com/smallbiznis/escolar/internal/scheduler"
	"github.com/smallbiznis/escolar/internal/school"
	"github.com/smallbiznis/escolar/internal/snapshot"
	"github.com/smallbiznis/escolar/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

const lifecycleTimeout = 30 * time.Second

// modules wires everything except the HTTP server and the ticker.
func modules() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		fx.Provide(newSnowflakeNode),
		db.Module,
		migration.Module,
		clock.Module,

		school.Module,
		invoice.Module,
		executionlog.Module,
		snapshot.Module,
		ratelimit.Module,
		scheduler.Module,
		providers.Module,
		export.Module,
		backup.Module,

		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx").WithOptions(zap.IncreaseLevel(zap.WarnLevel))}
		}),
	)
}

func newSnowflakeNode(cfg config.Config) (*snowflake.Node, error) {
	node, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", cfg.NodeID, err)
	}
	return node, nil
}

// startApp builds and starts the container for a one-shot command, filling
// targets through fx.Populate. The returned func stops it.
func startApp(ctx context.Context, targets ...any) (func(), error) {
	app := fx.New(modules(), fx.Populate(targets...))
	if err := app.Err(); err != nil {
		return nil, err
	}

	startCtx, cancel := context.WithTimeout(ctx, lifecycleTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return nil, err
	}

	return func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), lifecycleTimeout)
		defer cancel()
		_ = app.Stop(stopCtx)
	}, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
