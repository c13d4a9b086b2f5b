// Command audit runs one consistency check over an orderflow database and
// exits non-zero when drift is found.
//
//	audit -db orderflow.db            report only
//	audit -db orderflow.db -fix       rewrite drifted order statuses
//	audit -db orderflow.db -limit 500 sample the first 500 orders
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/warp/orderflow/api"
	"github.com/warp/orderflow/catalog"
	"github.com/warp/orderflow/config"
	"github.com/warp/orderflow/core"
	"github.com/warp/orderflow/inventory"
	"github.com/warp/orderflow/production"
	"github.com/warp/orderflow/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}

	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	fix := flag.Bool("fix", false, "rewrite cached order statuses that disagree with history")
	limit := flag.Int("limit", 0, "check at most this many orders (0 = all)")
	flag.Parse()

	logger := config.NewLogger(cfg.Log)
	log := logger.WithField("component", "audit")

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.WithError(err).Fatal("failed to open database")
	}
	defer store.Close()

	variants := catalog.NewResolver(store, core.SystemClock{})
	ledger := inventory.NewLedger(store, variants, inventory.WithLogger(log))
	orders := production.NewService(store, variants, ledger.Finished(), production.Config{
		ProductionLocation: inventory.LocationID(cfg.ProductionLocation),
	})
	orders.SetLogger(log)

	auditor := api.NewAuditor(orders, ledger)
	auditor.Limit = *limit
	auditor.SetLogger(log)

	report, err := auditor.RunNow(context.Background(), *fix)
	if err != nil {
		log.WithError(err).Fatal("audit failed")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		log.WithError(err).Fatal("failed to write report")
	}

	if !report.OK() && !*fix {
		store.Close()
		os.Exit(1)
	}
}
