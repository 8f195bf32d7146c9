package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/connectedlabs/lab-instrument-gateway/internal/config"
	"github.com/connectedlabs/lab-instrument-gateway/internal/database"
	"github.com/connectedlabs/lab-instrument-gateway/internal/detect"
	"github.com/connectedlabs/lab-instrument-gateway/internal/domain"
	"github.com/connectedlabs/lab-instrument-gateway/internal/logstore"
	"github.com/connectedlabs/lab-instrument-gateway/internal/mock"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	var store logstore.Store
	if config.UseDatabase() {
		db, err := database.Connect()
		if err != nil {
			log.Fatal().Err(err).Msg("db connect failed")
		}
		defer db.Close()
		store, err = logstore.NewPostgresStore(db)
		if err != nil {
			log.Fatal().Err(err).Msg("log store init failed")
		}
	} else {
		store = logstore.NewMemoryStore()
	}

	ingestor := logstore.NewIngestor(store)

	opts := mqtt.NewClientOptions().AddBroker(config.MQTTBroker()).SetClientID("labs-detector")
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatal().Err(token.Error()).Msg("mqtt connect")
	}
	defer client.Disconnect(250)

	handler := func(_ mqtt.Client, msg mqtt.Message) {
		if _, err := ingestor.FromMQTT(msg.Topic(), msg.Payload()); err != nil {
			log.Error().Err(err).Msg("log ingest failed")
		}
	}
	if token := client.Subscribe(config.MQTTLogTopic(), 0, handler); token.Wait() && token.Error() != nil {
		log.Fatal().Err(token.Error()).Msg("subscribe failed")
	}

	interval := time.Duration(config.DetectInterval()) * time.Second
	log.Info().Dur("interval", interval).Msg("detector running; Ctrl+C to stop")

	webhook := &http.Client{Timeout: 2 * time.Second}
	for range time.Tick(interval) {
		runDetection(store, webhook)
	}
}

// runDetection scans every known instrument's recent logs and pushes each
// resulting alert to the gateway's ingestion endpoint. Webhook failures are
// logged and dropped; the next cycle retries nothing.
func runDetection(store logstore.Store, webhook *http.Client) {
	now := time.Now().UTC()
	for _, id := range mock.InstrumentIDs() {
		logs, err := store.Recent(id, "", 200)
		if err != nil {
			log.Error().Err(err).Str("instrument_id", id).Msg("log query failed")
			continue
		}
		if len(logs) == 0 {
			continue
		}

		for _, alert := range detect.Detect(logs, now) {
			if err := postAlert(webhook, alert); err != nil {
				log.Warn().Err(err).Str("alert_id", alert.ID).Msg("alert webhook failed")
			} else {
				log.Info().Str("alert_id", alert.ID).Str("severity", alert.Severity).
					Str("instrument_id", alert.InstrumentID).Msg("alert sent")
			}
		}
	}
}

func postAlert(c *http.Client, alert domain.Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return err
	}
	resp, err := c.Post(config.GatewayURL()+"/api/alerts", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}
