package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/emilythestrangee/qa-forum/backend/internal/cache"
	"github.com/emilythestrangee/qa-forum/backend/internal/config"
	"github.com/emilythestrangee/qa-forum/backend/internal/database"
	"github.com/emilythestrangee/qa-forum/backend/internal/logger"
	"github.com/emilythestrangee/qa-forum/backend/internal/server"
	"github.com/emilythestrangee/qa-forum/backend/internal/service"
	"github.com/emilythestrangee/qa-forum/backend/internal/voting"
)

var defaultTags = []string{"go", "javascript", "python", "sql", "docker", "react", "css", "algorithms"}

func main() {
	app := &cli.App{
		Name:  "qa-server",
		Usage: "Q&A forum backend",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "directory containing config.yaml",
				EnvVars: []string{"QA_CONFIG_DIR"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "start http server",
				Action: serve,
			},
			{
				Name:  "migrate",
				Usage: "create or update the database schema",
				Action: func(c *cli.Context) error {
					_, db, err := bootstrap(c)
					if err != nil {
						return err
					}
					defer db.Close()
					return database.Migrate(db.GetDB())
				},
			},
			{
				Name:      "seed-tags",
				Usage:     "insert tags that do not exist yet",
				ArgsUsage: "[tag...]",
				Action: func(c *cli.Context) error {
					_, db, err := bootstrap(c)
					if err != nil {
						return err
					}
					defer db.Close()

					names := c.Args().Slice()
					if len(names) == 0 {
						names = defaultTags
					}
					n, err := service.NewTagService(db).Seed(c.Context, names)
					if err != nil {
						return err
					}
					logger.L.Info("tags seeded", zap.Int64("added", n))
					return nil
				},
			},
			{
				Name:  "reconcile",
				Usage: "recompute every vote tally from the vote rows",
				Action: func(c *cli.Context) error {
					_, db, err := bootstrap(c)
					if err != nil {
						return err
					}
					defer db.Close()

					report, err := voting.NewLedger(db, voting.NewRegistry()).Reconcile(c.Context)
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "backfilled=%d orphans=%d questions=%d answers=%d\n",
						report.Backfilled, report.Orphans, report.Questions, report.Answers)
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.L.Fatal("command failed", zap.Error(err))
	}
}

func bootstrap(c *cli.Context) (*config.Config, database.Service, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, err
	}
	logger.Init(cfg.Log)

	db, err := database.New(cfg.Database, !cfg.IsRelease())
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}

func serve(c *cli.Context) error {
	defer logger.Sync()

	cfg, db, err := bootstrap(c)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(db.GetDB()); err != nil {
		return err
	}

	rds, err := cache.NewClient(c.Context, cfg.Redis)
	if err != nil {
		logger.L.Warn("redis unavailable, stats will not be cached", zap.Error(err))
	}
	if rds != nil {
		defer rds.Close()
	}

	srv, err := server.NewServer(cfg, db, rds)
	if err != nil {
		return err
	}
	return srv.Run(c.Context)
}
