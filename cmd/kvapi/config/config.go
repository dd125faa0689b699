// Package config loads the YAML configuration of the kvapi server.
package config

import (
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/zachmann/go-utils/fileutils"
	"gopkg.in/yaml.v3"

	"github.com/kvapi-dev/kvapi"
	"github.com/kvapi-dev/kvapi/internal/logger"
)

// Config holds the complete server configuration
type Config struct {
	Server   kvapi.ServerConf `yaml:"server"`
	Storage  storageConf      `yaml:"storage"`
	API      apiConf          `yaml:"api"`
	Sessions sessionsConf     `yaml:"sessions"`
	Logging  logger.Conf      `yaml:"logging"`
}

var c Config

var possibleConfigLocations = []string{
	".",
	"config",
	"/config",
	"/kvapi/config",
	"/kvapi",
	"/etc/kvapi",
}

var defaultServerConf = kvapi.ServerConf{
	Port: 7654,
}

func defaultConfig() Config {
	return Config{
		Server:   defaultServerConf,
		Storage:  defaultStorageConf,
		API:      defaultAPIConf,
		Sessions: defaultSessionsConf,
		Logging:  logger.DefaultConf,
	}
}

// Get returns the loaded Config
func Get() Config {
	return c
}

func findConfigFile() string {
	for _, dir := range possibleConfigLocations {
		for _, name := range []string{"config.yaml", "config.yml"} {
			p := dir + "/" + name
			if fileutils.FileExists(p) {
				return p
			}
		}
	}
	return ""
}

// Load reads the config file and validates it; the process exits on errors.
// An empty filename searches the default locations.
func Load(filename string) {
	if filename == "" {
		filename = findConfigFile()
		if filename == "" {
			log.Fatal("could not find config file in any of the possible locations")
		}
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		log.WithError(err).Fatal("could not read config file")
	}
	conf, err := Parse(data)
	if err != nil {
		log.WithError(err).Fatal("invalid config")
	}
	c = *conf
}

// Parse parses and validates config data; unset options keep their defaults
func Parse(data []byte) (*Config, error) {
	conf := defaultConfig()
	if err := yaml.Unmarshal(data, &conf); err != nil {
		return nil, errors.Wrap(err, "could not parse config")
	}
	if err := conf.validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

func (conf *Config) validate() error {
	if conf.Server.Port <= 0 && !conf.Server.TLS.Enabled {
		return errors.New("error in server conf: port must be set")
	}
	if conf.Server.TLS.Enabled && (conf.Server.TLS.Cert == "" || conf.Server.TLS.Key == "") {
		return errors.New("error in server conf: tls requires cert and key")
	}
	if err := conf.Storage.validate(); err != nil {
		return err
	}
	if err := conf.API.validate(); err != nil {
		return err
	}
	if err := conf.Sessions.validate(); err != nil {
		return err
	}
	return errors.WithMessage(conf.Logging.Validate(), "error in logging conf")
}
