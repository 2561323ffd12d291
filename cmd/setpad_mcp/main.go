// Package main runs the setpad coach MCP server over stdio, for local MCP
// clients. The main service mounts the same server at /mcp over HTTP.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/2beens/setpad/internal/config"
	"github.com/2beens/setpad/internal/db"
	"github.com/2beens/setpad/internal/telemetry/metrics"
	"github.com/2beens/setpad/internal/workouts"
	workoutsmcp "github.com/2beens/setpad/internal/workouts/mcp"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

func main() {
	env := flag.String("env", "development", "environment [prod | production | dev | development]")
	configPath := flag.String("config", "./config.toml", "path to TOML config file")
	flag.Parse()

	// stdout carries the MCP protocol
	log.SetOutput(os.Stderr)

	cfg, err := config.Load(*env, *configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	log.SetLevel(log.WarnLevel)

	ctx := context.Background()
	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost:     cfg.PostgresHost,
		DBPort:     cfg.PostgresPort,
		DBName:     cfg.PostgresDBName,
		DBPassword: os.Getenv("SETPAD_POSTGRES_PASS"),
		MaxConns:   2,
	})
	if err != nil {
		log.Fatalf("db pool: %v", err)
	}
	defer dbPool.Close()

	repo := workouts.NewRepo(dbPool)
	metricsManager := metrics.NewManager("setpad", "mcp", prometheus.NewRegistry())
	analyzer := workouts.NewAnalyzer(repo, cfg.StatsCacheSizeMB, metricsManager)
	server := workoutsmcp.NewServer(dbPool, repo, analyzer)

	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		log.Fatal(err)
	}
}
