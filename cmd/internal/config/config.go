package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is read from the process environment (after .env is loaded).
type Config struct {
	Addr string `env:"APP_ADDR" envDefault:":6060"`

	Database  Database
	Booking   Booking
	Cognito   Cognito
	RabbitMQ  RabbitMQ
	Redis     Redis
	RateLimit RateLimit
}

type Database struct {
	Driver       string `env:"DB_DRIVER" envDefault:"sqlite"`
	DSN          string `env:"DB_DSN" envDefault:"./database.db"`
	MaxOpenConns int    `env:"DB_MAX_OPEN_CONNS" envDefault:"1"`
}

type Booking struct {
	Slots           []string      `env:"BOOKING_SLOTS" envDefault:"9:00 AM,10:00 AM,11:00 AM,12:00 PM,1:00 PM,2:00 PM,3:00 PM,4:00 PM"`
	OpenWeekdays    []string      `env:"BOOKING_OPEN_WEEKDAYS" envDefault:"mon,tue,wed,thu,fri"`
	Timezone        string        `env:"BOOKING_TIMEZONE" envDefault:"Local"`
	DefaultSessions int           `env:"BOOKING_DEFAULT_SESSIONS" envDefault:"0"`
	MaxOccurrences  int           `env:"BOOKING_MAX_OCCURRENCES" envDefault:"52"`
	MinLeadTime     time.Duration `env:"BOOKING_MIN_LEAD_TIME" envDefault:"1h"`
	MaxAdvance      time.Duration `env:"BOOKING_MAX_ADVANCE" envDefault:"2160h"`
	CancelNotice    time.Duration `env:"BOOKING_CANCEL_NOTICE" envDefault:"24h"`
	CommitAttempts  uint          `env:"BOOKING_COMMIT_ATTEMPTS" envDefault:"3"`
}

type Cognito struct {
	Region     string `env:"AWS_REGION" envDefault:"us-east-1"`
	ClientID   string `env:"COGNITO_CLIENT_ID"`
	UserPoolID string `env:"COGNITO_USER_POOL_ID"`
}

type RabbitMQ struct {
	URL         string        `env:"RABBITMQ_URL"`
	Timeout     time.Duration `env:"RABBITMQ_PUBLISH_TIMEOUT" envDefault:"3s"`
	QueuePrefix string        `env:"RABBITMQ_QUEUE_PREFIX"`
	MaxInFlight int           `env:"NOTIFY_MAX_IN_FLIGHT" envDefault:"64"`
}

type Redis struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type RateLimit struct {
	Enabled        bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	Capacity       int           `env:"RATE_LIMIT_CAPACITY" envDefault:"20"`
	RefillTokens   int           `env:"RATE_LIMIT_REFILL_TOKENS" envDefault:"1"`
	RefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL" envDefault:"3s"`
	TTL            time.Duration `env:"RATE_LIMIT_TTL" envDefault:"10m"`
	Prefix         string        `env:"RATE_LIMIT_PREFIX" envDefault:"rl"`
}

// Load parses the environment into a Config.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

// Weekdays converts the configured three-letter day names.
func (b Booking) Weekdays() ([]time.Weekday, error) {
	days := make([]time.Weekday, 0, len(b.OpenWeekdays))
	for _, name := range b.OpenWeekdays {
		key := strings.ToLower(strings.TrimSpace(name))
		if len(key) > 3 {
			key = key[:3]
		}
		d, ok := weekdays[key]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", name)
		}
		days = append(days, d)
	}
	return days, nil
}

// Location resolves the booking wall clock.
func (b Booking) Location() (*time.Location, error) {
	if b.Timezone == "" || b.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", b.Timezone, err)
	}
	return loc, nil
}
