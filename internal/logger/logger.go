// Package logger sets up the internal logrus logger and the access log.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/zachmann/go-utils/fileutils"

	"github.com/kvapi-dev/kvapi/internal/version"
)

// Conf holds all logging-related configuration under the `logging` key.
//
// YAML example:
//
//	logging:
//	  access:
//	    dir: /var/log/kvapi
//	    stderr: false
//	  internal:
//	    dir: /var/log/kvapi
//	    stderr: false
//	    level: INFO
//	  banner: true
type Conf struct {
	Access   LoggerConf   `yaml:"access"`
	Internal InternalConf `yaml:"internal"`
	Banner   bool         `yaml:"banner"`
}

// InternalConf configures application-internal logging.
// Level accepts standard log levels (e.g. DEBUG, INFO, WARN, ERROR).
type InternalConf struct {
	LoggerConf `yaml:",inline"`
	Level      string `yaml:"level"`
}

// LoggerConf holds configuration related to a log target
type LoggerConf struct {
	Dir    string `yaml:"dir"`
	StdErr bool   `yaml:"stderr"`
}

// DefaultConf is the logging configuration used when nothing is configured
var DefaultConf = Conf{
	Internal: InternalConf{
		Level: "INFO",
	},
	Banner: true,
}

func checkLoggingDirExists(dir string) error {
	if dir != "" && !fileutils.FileExists(dir) {
		return errors.Errorf("logging directory '%s' does not exist", dir)
	}
	return nil
}

// Validate checks that configured log directories exist
func (c *Conf) Validate() error {
	if err := checkLoggingDirExists(c.Access.Dir); err != nil {
		return err
	}
	return checkLoggingDirExists(c.Internal.Dir)
}

var accessWriter io.Writer = os.Stdout

// AccessWriter returns the writer access logs go to
func AccessWriter() io.Writer {
	return accessWriter
}

func newWriter(conf LoggerConf, fileName string) (io.Writer, error) {
	var writers []io.Writer
	if conf.Dir != "" {
		f, err := os.OpenFile(
			filepath.Join(conf.Dir, fileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640,
		)
		if err != nil {
			return nil, errors.Wrap(err, "could not open log file")
		}
		writers = append(writers, f)
	}
	if conf.StdErr || conf.Dir == "" {
		writers = append(writers, os.Stderr)
	}
	return io.MultiWriter(writers...), nil
}

// Init initializes the internal logger and the access log writer
func Init(conf Conf) error {
	w, err := newWriter(conf.Internal.LoggerConf, "kvapi.log")
	if err != nil {
		return err
	}
	log.SetOutput(w)
	level := log.InfoLevel
	if conf.Internal.Level != "" {
		if level, err = log.ParseLevel(strings.ToLower(conf.Internal.Level)); err != nil {
			return errors.Wrap(err, "invalid log level")
		}
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	if accessWriter, err = newWriter(conf.Access, "access.log"); err != nil {
		return err
	}
	if conf.Banner {
		log.Info(version.Banner())
	}
	return nil
}
