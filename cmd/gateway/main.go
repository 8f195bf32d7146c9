package main

import (
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/connectedlabs/lab-instrument-gateway/internal/alerts"
	"github.com/connectedlabs/lab-instrument-gateway/internal/command"
	"github.com/connectedlabs/lab-instrument-gateway/internal/config"
	"github.com/connectedlabs/lab-instrument-gateway/internal/database"
	"github.com/connectedlabs/lab-instrument-gateway/internal/instrument"
	"github.com/connectedlabs/lab-instrument-gateway/internal/logstore"
	"github.com/connectedlabs/lab-instrument-gateway/internal/mock"
	"github.com/connectedlabs/lab-instrument-gateway/internal/scan"
	"github.com/connectedlabs/lab-instrument-gateway/internal/server"
	"github.com/connectedlabs/lab-instrument-gateway/internal/ws"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	client := instrument.New(config.InstrumentPort())

	hub := ws.NewHub(log.Logger)

	alertStore := alerts.NewStore(hub, log.Logger)
	hub.SetHistory(func(channel string) any {
		if channel == "alerts" || strings.HasPrefix(channel, "alerts:") {
			return alertStore.Recent()
		}
		return nil
	})

	var exec command.Executor
	if config.SimulatedExecutor() {
		exec = command.NewSimulatedExecutor()
	} else {
		exec = command.NewInstrumentExecutor(client)
	}
	queue := command.NewQueue(exec, hub, log.Logger)

	var logs logstore.Store
	if config.UseDatabase() {
		db, err := database.Connect()
		if err != nil {
			log.Fatal().Err(err).Msg("db connect failed")
		}
		defer db.Close()
		logs, err = logstore.NewPostgresStore(db)
		if err != nil {
			log.Fatal().Err(err).Msg("log store init failed")
		}
	} else {
		logs = logstore.NewMemoryStore()
	}

	srv := server.New(server.Deps{
		Client:    client,
		Queue:     queue,
		Alerts:    alertStore,
		Logs:      logs,
		Gen:       mock.NewGenerator(),
		Scanner:   scan.New(client, log.Logger),
		Hub:       hub,
		ScanHosts: scan.Hosts(config.ScanSubnet(), config.ScanStart(), config.ScanEnd()),
		Log:       log.Logger,
	})

	// Periodic dashboard snapshot for subscribed clients.
	go func() {
		for range time.Tick(30 * time.Second) {
			if hub.Subscribers("dashboard") == 0 {
				continue
			}
			hub.Broadcast("dashboard", "stats", alertStore.Stats(time.Now().UTC()))
		}
	}()

	addr := config.GatewayAddr()
	log.Info().Str("addr", addr).Msg("gateway listening")
	log.Fatal().Err(srv.Listen(addr)).Msg("server exit")
}
