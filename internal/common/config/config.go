package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Debug bool `env:"DEBUG" envDefault:"false"`

	Server struct {
		Port   int    `env:"PORT" envDefault:"8080"`
		Origin string `env:"ORIGIN" envDefault:"http://localhost:3000"`

		// PublicBaseURL is the externally reachable URL of the service. When
		// empty the payment provider is given no return URLs, since it cannot
		// call back to a non-addressable host.
		PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:""`
	}

	// TicketStore selects the backing store for ticket rows: "postgres" or "dynamo".
	TicketStore string `env:"TICKET_STORE" envDefault:"postgres"`

	Postgres struct {
		Host            string        `env:"POSTGRES_HOST" envDefault:"localhost"`
		Port            int           `env:"POSTGRES_PORT" envDefault:"5432"`
		User            string        `env:"POSTGRES_USER" envDefault:"postgres"`
		Password        string        `env:"POSTGRES_PASSWORD" envDefault:""`
		Database        string        `env:"POSTGRES_DB" envDefault:"raffle"`
		SSLMode         string        `env:"POSTGRES_SSLMODE" envDefault:"disable"`
		MaxOpenConns    int           `env:"POSTGRES_MAX_OPEN_CONNS" envDefault:"25"`
		MaxIdleConns    int           `env:"POSTGRES_MAX_IDLE_CONNS" envDefault:"5"`
		ConnMaxLifetime time.Duration `env:"POSTGRES_CONN_MAX_LIFETIME" envDefault:"5m"`
	}

	Dynamo struct {
		TicketsTable string `env:"DYNAMO_TICKETS_TABLE" envDefault:"raffle_tickets"`
		Endpoint     string `env:"DYNAMO_ENDPOINT" envDefault:""`
	}

	Redis struct {
		Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
		Password string `env:"REDIS_PASSWORD" envDefault:""`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
	}

	Auth struct {
		// VerifyURL is the session endpoint of the external identity provider.
		// The middleware forwards the bearer token there and expects the
		// current user id back.
		VerifyURL string        `env:"AUTH_VERIFY_URL" envDefault:"http://localhost:9999/auth/v1/user"`
		Timeout   time.Duration `env:"AUTH_TIMEOUT" envDefault:"5s"`
	}

	Sweep struct {
		// Interval between passes of the reservation expiry sweeper. Zero
		// disables the background sweep; expired reservations are then only
		// reverted lazily on read.
		Interval time.Duration `env:"SWEEP_INTERVAL" envDefault:"5m"`
	}
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Postgres.Host, c.Postgres.Port, c.Postgres.User, c.Postgres.Password, c.Postgres.Database, c.Postgres.SSLMode)
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		// .env is optional; production sets variables directly.
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		panic(err)
	}

	return cfg
}
