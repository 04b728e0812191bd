// Package client runs a training participant: an agent that serves a local
// fl.Client to a coordinator over MQTT, and a simulated trainer used when no
// real model is plugged in.
package client

import (
	"errors"
	"time"
)

// PropertyPeerName is the human readable name a client reports.
const PropertyPeerName = "peer_name"

var (
	ErrUnknownMethod    = errors.New("unknown method")
	ErrMissingRequestID = errors.New("missing request id")
)

type Config struct {
	ID                 string        `env:"ID"`
	ChannelID          string        `env:"CHANNEL_ID"`
	LivelinessInterval time.Duration `env:"LIVELINESS_INTERVAL" envDefault:"10s"`
}
