package main

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	GatewayURL string `envconfig:"CHAT_GATEWAY_URL" default:"ws://localhost:8080/ws"`
	RoomID     string `envconfig:"CHAT_ROOM_ID" default:"1"`
	Listeners  int    `envconfig:"CHAT_LISTENERS" default:"3"`
	// TESTER_COLOURS enables colorized output for better log readability
	Colours bool          `envconfig:"TESTER_COLOURS" default:"true"`
	Timeout time.Duration `envconfig:"CHAT_TIMEOUT" default:"10s"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
