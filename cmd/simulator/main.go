package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/connectedlabs/lab-instrument-gateway/internal/config"
	"github.com/connectedlabs/lab-instrument-gateway/internal/mock"
)

// The simulator plays the part of a real device: it serves the instrument
// HTTP API on the instrument port and streams synthetic log lines to the
// MQTT topic the detector consumes.
func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	api := mock.NewInstrumentAPI("Ampersand")
	go func() {
		addr := fmt.Sprintf(":%d", config.InstrumentPort())
		log.Info().Str("addr", addr).Msg("instrument API listening")
		log.Fatal().Err(api.App().Listen(addr)).Msg("instrument API exit")
	}()

	opts := mqtt.NewClientOptions().AddBroker(config.MQTTBroker()).SetClientID("labs-simulator")
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatal().Err(token.Error()).Msg("mqtt connect")
	}
	defer client.Disconnect(250)

	gen := mock.NewGenerator()
	ids := mock.InstrumentIDs()
	topic := config.MQTTLogTopic()

	log.Info().Str("topic", topic).Msg("publishing synthetic logs; Ctrl+C to stop")
	for range time.Tick(500 * time.Millisecond) {
		entry := gen.Entry(ids[rand.Intn(len(ids))], time.Now().UTC())
		payload, err := json.Marshal(entry)
		if err != nil {
			log.Error().Err(err).Msg("marshal log entry")
			continue
		}
		token := client.Publish(topic, 0, false, payload)
		token.Wait()
	}
}
