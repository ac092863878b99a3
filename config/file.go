package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Bridge is the bridge's own configuration, loaded from a TOML file.
type Bridge struct {
	// Host is the locator's address, without port.
	Host     string `toml:"locator_host"`
	User     string `toml:"user_name"`
	Password string `toml:"password"`

	// Local ports the optional sending channels listen on; the
	// locator dials in.
	LaserPort  int `toml:"laser_datagram_port"`
	Laser2Port int `toml:"laser2_datagram_port"`
	OdomPort   int `toml:"odom_datagram_port"`

	// GatewayAddr is the listen address of the HTTP/WebSocket
	// gateway. Empty disables the gateway.
	GatewayAddr string `toml:"gateway_addr"`

	// Overrides are merged into the locator's live configuration at
	// startup.
	Overrides map[string]interface{} `toml:"localization_client_config"`
}

// Default ports of the sending channels.
const (
	DefaultLaserPort  = 9090
	DefaultLaser2Port = 9091
	DefaultOdomPort   = 9092
)

// LoadFile reads a bridge configuration from a TOML file, filling in
// default ports for the sending channels.
func LoadFile(path string) (*Bridge, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %v: %v", path, err)
	}

	return Load(string(data))
}

// Load parses a bridge configuration from TOML source.
func Load(data string) (*Bridge, error) {
	b := &Bridge{
		LaserPort:  DefaultLaserPort,
		Laser2Port: DefaultLaser2Port,
		OdomPort:   DefaultOdomPort,
	}
	if _, err := toml.Decode(data, b); err != nil {
		return nil, fmt.Errorf("config: parse: %v", err)
	}

	if b.Host == "" {
		return nil, fmt.Errorf("config: locator_host is required")
	}

	return b, nil
}
