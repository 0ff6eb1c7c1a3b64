package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/casaflow/casaflow/internal/clock"
	"github.com/casaflow/casaflow/internal/commission"
	"github.com/casaflow/casaflow/internal/config"
	"github.com/casaflow/casaflow/internal/contract"
	"github.com/casaflow/casaflow/internal/logger"
	"github.com/casaflow/casaflow/internal/migration"
	"github.com/casaflow/casaflow/internal/mora"
	"github.com/casaflow/casaflow/internal/obligation"
	"github.com/casaflow/casaflow/internal/payment"
	"github.com/casaflow/casaflow/internal/reconciler"
	"github.com/casaflow/casaflow/internal/scheduler"
	"github.com/casaflow/casaflow/internal/server"
	"github.com/casaflow/casaflow/pkg/db"
	"go.uber.org/fx"
)

// The monolith: HTTP API and the background reconciler in one process.
func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		contract.Module,
		obligation.Module,
		payment.Module,
		commission.Module,
		mora.Module,
		reconciler.Module,
		scheduler.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
