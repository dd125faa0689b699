package config

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/zachmann/go-utils/duration"

	"github.com/kvapi-dev/kvapi/internal/sessions"
)

type sessionsConf struct {
	MaxInactivity duration.DurationOption `yaml:"max_inactivity"`
	SweepInterval duration.DurationOption `yaml:"sweep_interval"`
	RedisAddr     string                  `yaml:"redis_addr"`
	Username      string                  `yaml:"username"`
	Password      string                  `yaml:"password"`
	RedisDB       int                     `yaml:"redis_db"`
	RedisPrefix   string                  `yaml:"redis_prefix"`
}

var defaultSessionsConf = sessionsConf{
	MaxInactivity: duration.DurationOption(time.Hour),
	SweepInterval: duration.DurationOption(time.Minute),
	RedisPrefix:   "kvapi",
}

func (c *sessionsConf) validate() error {
	if c.MaxInactivity.Duration() <= 0 {
		return errors.New("error in sessions conf: max_inactivity must be positive")
	}
	if c.SweepInterval.Duration() < 0 {
		return errors.New("error in sessions conf: sweep_interval must not be negative")
	}
	return nil
}

// LoadSessionStore returns the session store configured in c; without a
// redis address sessions are kept in memory.
func LoadSessionStore(c sessionsConf) (sessions.Store, error) {
	if c.RedisAddr == "" {
		return sessions.NewMemoryStore(), nil
	}
	client := redis.NewClient(
		&redis.Options{
			Addr:     c.RedisAddr,
			Username: c.Username,
			Password: c.Password,
			DB:       c.RedisDB,
		},
	)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "could not connect to redis")
	}
	log.WithField("addr", c.RedisAddr).Info("Loaded Redis session store")
	return sessions.NewRedisStore(client, c.RedisPrefix), nil
}
