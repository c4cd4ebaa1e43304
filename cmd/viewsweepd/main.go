package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"

	"go.matview.dev/core/catalog"
	mbp "go.matview.dev/core/mainboilerplate"
	"go.matview.dev/core/prepared"
	store_postgres "go.matview.dev/core/prepared/store-postgres"
	"go.matview.dev/core/refresh"
)

const iniFilename = "viewsweepd.ini"

// Config is the top-level configuration object of the recovery sweep daemon.
var Config = new(struct {
	Sweep struct {
		Postgres  string        `long:"postgres" env:"POSTGRES" default:"host=/var/run/postgresql" description:"Database connection string"`
		Interval  time.Duration `long:"interval" env:"INTERVAL" default:"1m" description:"Interval between recovery sweeps"`
		RecordTTL time.Duration `long:"record-ttl" env:"RECORD_TTL" default:"24h" description:"Time-to-live of persisted queue records"`
		MaxDepth  int           `long:"max-depth" env:"MAX_DEPTH" default:"10" description:"Maximum allowed dependency graph depth"`
	} `group:"Sweep" namespace:"sweep" env-namespace:"SWEEP"`

	Log         mbp.LogConfig         `group:"Logging" namespace:"log" env-namespace:"LOG"`
	Diagnostics mbp.DiagnosticsConfig `group:"Debug" namespace:"debug" env-namespace:"DEBUG"`
})

type serveSweeper struct{}

func (serveSweeper) Execute(args []string) error {
	defer mbp.InitDiagnosticsAndRecover(Config.Diagnostics)()
	mbp.InitLog(Config.Log)

	log.WithField("config", Config).Info("starting sweep daemon")

	var db, err = sql.Open("postgres", Config.Sweep.Postgres)
	mbp.Must(err, "opening database")
	defer db.Close()

	var ctx = context.Background()
	var store = store_postgres.NewStore(db)
	var metadata = store_postgres.NewMetadataStore(db)

	mbp.Must(store.EnsureSchema(ctx), "ensuring record schema")
	mbp.Must(metadata.EnsureSchema(ctx), "ensuring metadata schema")

	var manager = prepared.NewManager(store, Config.Sweep.RecordTTL)
	var service = refresh.NewService(
		catalog.NewCatalog(metadata, catalog.Options{MaxDepth: Config.Sweep.MaxDepth}),
		store_postgres.NewRecomputer(db),
		manager,
		refresh.Config{},
	)
	var sweeper = &prepared.Sweeper{
		Manager:  manager,
		Registry: store_postgres.NewRegistry(db),
		Locker:   store_postgres.NewLocker(db),
		Process:  service.ProcessRecovered,
	}

	var signalCh = make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGTERM, syscall.SIGINT)

	var ticker = time.NewTicker(Config.Sweep.Interval)
	defer ticker.Stop()

	for {
		var stats, err = sweeper.Sweep(ctx)
		if err != nil {
			log.WithField("err", err).Error("recovery sweep failed")
		} else if stats.Scanned != 0 {
			log.WithFields(log.Fields{
				"scanned":   stats.Scanned,
				"recovered": stats.Recovered,
				"discarded": stats.Discarded,
				"ambiguous": stats.Ambiguous,
				"corrupted": stats.Corrupted,
				"skipped":   stats.Skipped,
				"failed":    stats.Failed,
			}).Info("completed recovery sweep")
		}

		select {
		case <-ticker.C:
			// Next sweep.
		case sig := <-signalCh:
			log.WithField("signal", sig).Info("signaled to exit")
			log.Info("goodbye")
			return nil
		}
	}
}

func main() {
	var parser = flags.NewParser(Config, flags.Default)

	_, _ = parser.AddCommand("serve", "Serve as recovery sweep daemon", `
Serve the recovery sweep daemon with the provided configuration, until
signaled to exit (via SIGTERM). Each sweep finds expired queue records of
prepared transactions, resolves their outcomes, and recovers any owed view
refreshes.
`, &serveSweeper{})

	mbp.AddPrintConfigCmd(parser, iniFilename)
	mbp.MustParseConfig(parser, iniFilename)
}
