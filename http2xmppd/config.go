package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/caarlos0/env/v11"
	"github.com/gammazero/http2xmpp/session"
	"github.com/tidwall/jsonc"
)

const defaultResource = "http2xmpp"

// Config is read from a JSON file, which may contain comments, and then
// overridden by any HTTP2XMPP_* environment variables that are set.
type Config struct {
	Username           string `json:"username" env:"HTTP2XMPP_USERNAME"`
	Password           string `json:"password" env:"HTTP2XMPP_PASSWORD"`
	Host               string `json:"host" env:"HTTP2XMPP_HOST"`
	DirectTLS          bool   `json:"direct_tls" env:"HTTP2XMPP_DIRECT_TLS"`
	InsecureSkipVerify bool   `json:"insecure_skip_verify" env:"HTTP2XMPP_INSECURE_SKIP_VERIFY"`

	Port       int    `json:"port" env:"HTTP2XMPP_PORT"`
	ListenHost string `json:"listen_host" env:"HTTP2XMPP_LISTEN_HOST"`

	RoomSuffix string   `json:"room_suffix" env:"HTTP2XMPP_ROOM_SUFFIX"`
	Resource   string   `json:"resource" env:"HTTP2XMPP_RESOURCE"`
	Rooms      []string `json:"rooms" env:"HTTP2XMPP_ROOMS" envSeparator:","`

	LogPath string `json:"log_path" env:"HTTP2XMPP_LOG_PATH"`
	Debug   bool   `json:"debug" env:"HTTP2XMPP_DEBUG"`
}

// LoadConfig reads the config file at path, applies environment overrides,
// and validates the result.  An empty path reads the environment only.
func LoadConfig(path string) (*Config, error) {
	var config Config
	if path != "" {
		file, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config file missing: %w", err)
		}
		if err = json.Unmarshal(jsonc.ToJSON(file), &config); err != nil {
			return nil, fmt.Errorf("config parse error: %w", err)
		}
	}
	if err := env.Parse(&config); err != nil {
		return nil, fmt.Errorf("config environment error: %w", err)
	}
	if config.Resource == "" {
		config.Resource = defaultResource
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.Username == "" {
		errs = append(errs, errors.New("username not specified"))
	}
	if c.Password == "" {
		errs = append(errs, errors.New("password not specified"))
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port: %d", c.Port))
	}
	if len(c.Rooms) != 0 && c.RoomSuffix == "" {
		errs = append(errs, errors.New("room_suffix required when rooms are configured"))
	}
	return errors.Join(errs...)
}

// Address returns the HTTP listen address.
func (c *Config) Address() string {
	return net.JoinHostPort(c.ListenHost, strconv.Itoa(c.Port))
}

// SessionConfig returns the XMPP session configuration.
func (c *Config) SessionConfig() session.Config {
	return session.Config{
		JID:                c.Username,
		Password:           c.Password,
		Host:               c.Host,
		DirectTLS:          c.DirectTLS,
		InsecureSkipVerify: c.InsecureSkipVerify,
		Rooms:              c.Rooms,
		RoomSuffix:         c.RoomSuffix,
		Resource:           c.Resource,
		Debug:              c.Debug,
	}
}
