package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// RPC is an RPC client configuration.
type RPC struct {
	// Endpoint is the node URL, "ws://" and "wss://" schemes make the client
	// use a single websocket connection.
	Endpoint        string        `yaml:"Endpoint"`
	DialTimeout     time.Duration `yaml:"DialTimeout"`
	RequestTimeout  time.Duration `yaml:"RequestTimeout"`
	MaxConnsPerHost int           `yaml:"MaxConnsPerHost"`
}

// Validate checks RPC section.
func (r RPC) Validate() error {
	if r.Endpoint == "" {
		return fmt.Errorf("no endpoint (set it in config or %s)", EnvEndpoint)
	}
	u, err := url.Parse(r.Endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint: %w", err)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("invalid endpoint scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("no host in endpoint %q", r.Endpoint)
	}
	if r.DialTimeout < 0 || r.RequestTimeout < 0 {
		return errors.New("negative timeout")
	}
	if r.MaxConnsPerHost < 0 {
		return errors.New("negative MaxConnsPerHost")
	}
	return nil
}
