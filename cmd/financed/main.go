package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/plannivo/finance/internal/clock"
	"github.com/plannivo/finance/internal/config"
	"github.com/plannivo/finance/internal/migration"
	"github.com/plannivo/finance/internal/observability"
	"github.com/plannivo/finance/internal/server"
	"github.com/plannivo/finance/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,

		// Finance services and the HTTP surface
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
