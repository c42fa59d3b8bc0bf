package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vanthaita/piratesocial-chat/domain"
)

type Config struct {
	Host           string `env:"HOST,default=0.0.0.0"`
	Port           int    `env:"PORT,default=8080"`
	LogLevel       string `env:"LOG_LEVEL,default=info"`
	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`

	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=256"`
	MaxMessageSize       int64         `env:"MAX_MESSAGE_SIZE,default=4096"`
	HandshakeTimeout     time.Duration `env:"HANDSHAKE_TIMEOUT,default=10s"`
	EventTimeout         time.Duration `env:"EVENT_TIMEOUT,default=10s"`
	WriteTimeout         time.Duration `env:"WRITE_TIMEOUT,default=10s"`
	PongTimeout          time.Duration `env:"PONG_TIMEOUT,default=60s"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,default=2s"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,default=30s"`

	HistoryLimit *int `env:"HISTORY_LIMIT"`

	// SeedRooms bootstraps durable rooms at startup, e.g. "1:general,2:random"
	// or just "1,2". Room creation is otherwise owned by the REST side.
	SeedRooms string `env:"SEED_ROOMS"`

	ModerationCharReplacement string `env:"MODERATION_CHARACTER_REPLACEMENT,default=*"`
}

func (c Config) seedRooms() ([]domain.Room, error) {
	if strings.TrimSpace(c.SeedRooms) == "" {
		return nil, nil
	}
	var rooms []domain.Room
	for _, entry := range strings.Split(c.SeedRooms, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		ref, name, _ := strings.Cut(entry, ":")
		id, err := strconv.ParseInt(ref, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("SEED_ROOMS entry %q: %w", entry, err)
		}
		rooms = append(rooms, domain.Room{ID: domain.RoomID(id), Name: name})
	}
	return rooms, nil
}

// maskingRune enforces that the configured replacement is one character.
func maskingRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf("MODERATION_CHARACTER_REPLACEMENT must be a single character, got %q", str)
	}
	return r[0], nil
}
