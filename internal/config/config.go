package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
	Migrate         bool
}

type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	MailStream string
	Group      string
	Consumer   string
}

type SecurityConfig struct {
	JWTSecret     string
	SessionTTL    time.Duration
	BcryptCost    int
	ActivationTTL time.Duration
}

type MailConfig struct {
	Host              string
	Port              int
	Username          string
	Password          string
	TLS               bool
	FromName          string
	FromAddress       string
	ActivationBaseURL string
}

type WorkerConfig struct {
	ClaimMinIdle    time.Duration
	ClaimSchedule   string
	TrimSchedule    string
	StreamMaxLength int64
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Security         SecurityConfig
	Mail             MailConfig
	Worker           WorkerConfig
	AllowCORSOrigins []string
}

var ErrMissingJWTSecret = errors.New("security.jwtsecret is required in production")

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("USERHUB")
	v.AutomaticEnv()

	return load(v)
}

func load(v *viper.Viper) (*AppConfig, error) {
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) Validate() error {
	if c.Environment == "production" && c.Security.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	if c.Security.BcryptCost < 4 || c.Security.BcryptCost > 31 {
		return fmt.Errorf("security.bcryptcost out of range: %d", c.Security.BcryptCost)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 10)
	v.SetDefault("postgres.connmaxlifetime", "30m")
	v.SetDefault("postgres.migrate", true)

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.mailstream", "mail:activation")
	v.SetDefault("redis.group", "mail-workers")
	v.SetDefault("redis.consumer", "worker-1")

	v.SetDefault("security.jwtsecret", "")
	v.SetDefault("security.sessionttl", "24h")
	v.SetDefault("security.bcryptcost", 10)
	v.SetDefault("security.activationttl", "15m")

	v.SetDefault("mail.host", "localhost")
	v.SetDefault("mail.port", 1025)
	v.SetDefault("mail.tls", false)
	v.SetDefault("mail.fromname", "UserHub")
	v.SetDefault("mail.fromaddress", "no-reply@userhub.local")
	v.SetDefault("mail.activationbaseurl", "http://localhost:3000/activate")

	v.SetDefault("worker.claimminidle", "1m")
	v.SetDefault("worker.claimschedule", "0 */1 * * * *")
	v.SetDefault("worker.trimschedule", "0 0 3 * * *")
	v.SetDefault("worker.streammaxlength", 10000)
}
