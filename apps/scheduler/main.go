package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/casaflow/casaflow/internal/clock"
	"github.com/casaflow/casaflow/internal/config"
	"github.com/casaflow/casaflow/internal/logger"
	"github.com/casaflow/casaflow/internal/reconciler"
	"github.com/casaflow/casaflow/internal/scheduler"
	"github.com/casaflow/casaflow/pkg/db"
	"go.uber.org/fx"
)

// Scheduler-only process: runs the periodic reconciliation loop without the
// HTTP surface.
func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		reconciler.Module,
		scheduler.Module,
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
