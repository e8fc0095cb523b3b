package main

import (
	"context"
	"flag"

	"researchflow/internal/modkit"
	"researchflow/internal/modkit/module"
	"researchflow/internal/platform/config"
	"researchflow/internal/platform/logger"
	"researchflow/internal/platform/store"

	catalogmod "researchflow/internal/services/catalog/module"
	"researchflow/internal/services/refresher/service"
)

func main() {
	root := config.New()
	pgCfg := root.Prefix("SERVICE_PGSQL_")
	chCfg := root.Prefix("SERVICE_CLICKHOUSE_")
	refCfg := root.Prefix("CORE_REFRESHER_")

	l := logger.Get()

	var (
		fOnce     = flag.Bool("once", false, "refresh every view once and exit")
		fSchedule = flag.String("schedule", "", "cron schedule (overrides CORE_REFRESHER_SCHEDULE)")
	)
	flag.Parse()

	st, err := store.Open(context.Background(), store.Config{
		PG: store.PGConfig{
			Enabled:     true,
			URL:         pgCfg.MustString("DBURL"),
			MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 4)),
			SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
			LogSQL:      pgCfg.MayBool("LOG_SQL", false),
		},
		CH: store.CHConfig{
			Enabled:    true,
			URL:        chCfg.MustString("DBURL"),
			ClientName: "researchflow",
			ClientTag:  "refresher",
		},
	}, store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	deps := modkit.Deps{
		Cfg: root,
		PG:  st.PG,
		CH:  st.CH,
		Log: *l,
	}

	catalog := catalogmod.New(deps, catalogmod.Options{})
	ports := module.MustPortsOf[catalogmod.Ports](catalog)

	schedule := *fSchedule
	if schedule == "" {
		schedule = refCfg.MayString("SCHEDULE", "0 2 * * *")
	}
	svc := service.New(ports.Views, service.Config{Schedule: schedule})

	if *fOnce || refCfg.MayBool("ONCE", false) {
		if err := svc.RefreshAll(context.Background()); err != nil {
			l.Fatal().Err(err).Msg("refresh failed")
		}
		return
	}

	if err := svc.Run(context.Background()); err != nil && err != context.Canceled {
		l.Fatal().Err(err).Msg("refresher stopped")
	}
}
