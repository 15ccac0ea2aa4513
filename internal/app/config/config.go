package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"uvsense-go/services/hal"
	"uvsense-go/services/hal/platform"
	"uvsense-go/types"

	"github.com/womat/debug"
	"gopkg.in/yaml.v2"
)

// Config defines the struct of global config and the struct of the configuration file
type Config struct {
	Flag      FlagConfig            `yaml:"-"`
	Debug     DebugConfig           `yaml:"debug"`
	Webserver WebserverConfig       `yaml:"webserver"`
	MQTT      MQTTConfig            `yaml:"mqtt"`
	Heartbeat types.HeartbeatConfig `yaml:"heartbeat"`
	Buses     []platform.BusConfig  `yaml:"buses"`
	Devices   []DeviceConfig        `yaml:"devices"`
}

// FlagConfig defines the configured flags (parameters)
type FlagConfig struct {
	Debug      string
	ConfigFile string
}

// WebserverConfig defines the struct of the webserver and webservice configuration and configuration file
type WebserverConfig struct {
	URL         string          `yaml:"url"`
	Webservices map[string]bool `yaml:"webservices"`
}

// MQTTConfig defines the struct of the mqtt client configuration and configuration file
type MQTTConfig struct {
	Connection string `yaml:"connection"`
	ClientID   string `yaml:"clientid"`
	Topic      string `yaml:"topic"`
	Retained   bool   `yaml:"retained"`
}

// DebugConfig defines the struct of the debug configuration and configuration file
type DebugConfig struct {
	File       io.WriteCloser `yaml:"-"`
	Flag       int            `yaml:"-"`
	FlagString string         `yaml:"flag"`
	FileString string         `yaml:"file"`
}

// DeviceConfig is one sensor attached to a configured bus.
type DeviceConfig struct {
	ID     string       `yaml:"id"`
	Type   string       `yaml:"type"`
	Bus    string       `yaml:"bus"`
	Params hal.UVParams `yaml:"params"`
}

func NewConfig() *Config {
	return &Config{
		Flag: FlagConfig{},
		Debug: DebugConfig{
			FileString: "stderr",
			FlagString: "standard",
		},
		Webserver: WebserverConfig{
			URL: "http://0.0.0.0:4010",
			Webservices: map[string]bool{
				"version": true,
				"health":  true,
				"data":    true,
				"metrics": true,
			},
		},
		MQTT: MQTTConfig{
			ClientID: "uvsense",
			Topic:    "uvsense",
		},
		Heartbeat: types.HeartbeatConfig{IntervalS: 5},
	}
}

func (c *Config) LoadConfig() error {
	if err := c.readConfigFile(); err != nil {
		return fmt.Errorf("error reading config file %q: %w", c.Flag.ConfigFile, err)
	}

	if c.Flag.Debug != "" {
		c.Debug.FlagString = c.Flag.Debug
	}
	if err := c.setDebugConfig(); err != nil {
		return fmt.Errorf("unable to open debug file %q: %w", c.Debug.FileString, err)
	}

	return c.Validate()
}

// Validate checks that every device names a configured bus.
func (c *Config) Validate() error {
	buses := map[string]bool{}
	for _, b := range c.Buses {
		buses[b.ID] = true
	}
	var errs []error
	ids := map[string]bool{}
	for _, d := range c.Devices {
		switch {
		case d.ID == "":
			errs = append(errs, errors.New("device without id"))
		case ids[d.ID]:
			errs = append(errs, fmt.Errorf("duplicate device id %q", d.ID))
		case !buses[d.Bus]:
			errs = append(errs, fmt.Errorf("device %q: unknown bus %q", d.ID, d.Bus))
		}
		ids[d.ID] = true
	}
	return errors.Join(errs...)
}

// HALConfig builds the document published on config/hal.
func (c *Config) HALConfig() hal.HALConfig {
	hc := hal.HALConfig{Version: 1}
	for _, d := range c.Devices {
		typ := d.Type
		if typ == "" {
			typ = "veml6075"
		}
		hc.Devices = append(hc.Devices, hal.DevCfg{
			ID:     d.ID,
			Type:   typ,
			BusRef: hal.DevBusRef{Type: "i2c", ID: d.Bus},
			Params: d.Params,
		})
	}
	return hc
}

func (c *Config) readConfigFile() error {
	file, err := os.Open(c.Flag.ConfigFile)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	decoder := yaml.NewDecoder(file)
	if err = decoder.Decode(c); err != nil {
		return err
	}

	return nil
}

func (c *Config) setDebugConfig() (err error) {
	// defines Debug section of global.Config
	switch c.Debug.FlagString {
	case "trace", "full":
		c.Debug.Flag = debug.Full
	case "debug":
		c.Debug.Flag = debug.Warning | debug.Info | debug.Error | debug.Fatal | debug.Debug
	case "standard":
		c.Debug.Flag = debug.Standard
	default:
		return fmt.Errorf("unknown debug flag %q", c.Debug.FlagString)
	}

	switch c.Debug.FileString {
	case "stderr":
		c.Debug.File = os.Stderr
	case "stdout":
		c.Debug.File = os.Stdout
	default:
		if c.Debug.File, err = os.OpenFile(c.Debug.FileString, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666); err != nil {
			return
		}
	}

	return
}
