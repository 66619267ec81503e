package buildCFG

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/dbpg"
)

// Source is the part of wbf config the builders read from.
type Source interface {
	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool
	GetDuration(key string) time.Duration
	GetStringSlice(key string) []string
}

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type ServerConfig struct {
	Port            string
	GinMode         string
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

type StorageConfig struct {
	Driver             string
	MigrationsDir      string
	MigrateDownOnClose bool
	SeedSampleEvents   bool
}

type RabbitConfig struct {
	Enabled  bool
	Url      string
	Exchange string
	Queue    string
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Register int
	Scan     int
	Window   time.Duration
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

type MailConfig struct {
	Enabled  bool
	Host     string
	Port     int
	From     string
	Password string
}

type TicketingConfig struct {
	MaxQuantity       int
	ReconcileInterval time.Duration
}

func BuildServerConfig(cfg Source, log *zerolog.Logger) ServerConfig {
	sc := ServerConfig{
		Port:            cfg.GetString("server.port"),
		GinMode:         cfg.GetString("server.gin_mode"),
		ShutdownTimeout: cfg.GetDuration("server.shutdown_timeout"),
		AllowedOrigins:  cfg.GetStringSlice("server.allowed_origins"),
	}
	if sc.Port == "" {
		sc.Port = "8080"
		log.Warn().Msg("server.port not set, using 8080")
	}
	if sc.GinMode == "" {
		sc.GinMode = "release"
	}
	if sc.ShutdownTimeout <= 0 {
		sc.ShutdownTimeout = 10 * time.Second
	}
	return sc
}

func BuildStorageConfig(cfg Source, log *zerolog.Logger) (StorageConfig, error) {
	sc := StorageConfig{
		Driver:             strings.ToLower(cfg.GetString("storage.driver")),
		MigrationsDir:      cfg.GetString("storage.migrations_dir"),
		MigrateDownOnClose: cfg.GetBool("storage.migrate_down_on_shutdown"),
		SeedSampleEvents:   cfg.GetBool("storage.seed_sample_events"),
	}
	if sc.Driver == "" {
		sc.Driver = DriverPostgres
	}
	if sc.Driver != DriverPostgres && sc.Driver != DriverMemory {
		return sc, fmt.Errorf("unknown storage.driver %q", sc.Driver)
	}
	if sc.MigrationsDir == "" {
		sc.MigrationsDir = "migrations/postgres"
	}
	log.Info().Str("driver", sc.Driver).Msg("storage configured")
	return sc, nil
}

func BuildDBConfig(cfg Source, log *zerolog.Logger) (string, []string, *dbpg.Options, error) {
	masterDSN := cfg.GetString("database.master_dsn")
	if masterDSN == "" {
		return "", nil, nil, fmt.Errorf("database.master_dsn is required")
	}
	slaveDSNs := cfg.GetStringSlice("database.slave_dsns")

	opts := &dbpg.Options{
		MaxOpenConns:    cfg.GetInt("database.max_open_conns"),
		MaxIdleConns:    cfg.GetInt("database.max_idle_conns"),
		ConnMaxLifetime: cfg.GetDuration("database.conn_max_lifetime"),
	}
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = 10
	}
	if opts.MaxIdleConns <= 0 {
		opts.MaxIdleConns = 5
	}
	if opts.ConnMaxLifetime <= 0 {
		opts.ConnMaxLifetime = 30 * time.Minute
	}

	log.Info().Int("slaves", len(slaveDSNs)).Int("max_open_conns", opts.MaxOpenConns).Msg("database configured")
	return masterDSN, slaveDSNs, opts, nil
}

func BuildRabbitConfig(cfg Source, log *zerolog.Logger) (RabbitConfig, error) {
	rc := RabbitConfig{
		Enabled:  cfg.GetBool("rabbitmq.enabled"),
		Url:      cfg.GetString("rabbitmq.url"),
		Exchange: cfg.GetString("rabbitmq.exchange"),
		Queue:    cfg.GetString("rabbitmq.queue"),
	}
	if !rc.Enabled {
		log.Info().Msg("RabbitMQ disabled, notifications will not be published")
		return rc, nil
	}
	if rc.Url == "" {
		return rc, fmt.Errorf("rabbitmq.url is required when rabbitmq is enabled")
	}
	if rc.Exchange == "" {
		rc.Exchange = "tickets"
	}
	if rc.Queue == "" {
		rc.Queue = "ticket-notifications"
	}
	return rc, nil
}

func BuildRedisConfig(cfg Source, log *zerolog.Logger) (RedisConfig, RateLimitConfig) {
	rc := RedisConfig{
		Enabled:  cfg.GetBool("redis.enabled"),
		Addr:     cfg.GetString("redis.addr"),
		Password: cfg.GetString("redis.password"),
		DB:       cfg.GetInt("redis.db"),
	}
	if rc.Addr == "" {
		rc.Addr = "localhost:6379"
	}
	lc := RateLimitConfig{
		Register: cfg.GetInt("rate_limit.register_per_window"),
		Scan:     cfg.GetInt("rate_limit.scan_per_window"),
		Window:   cfg.GetDuration("rate_limit.window"),
	}
	if lc.Window <= 0 {
		lc.Window = time.Minute
	}
	if !rc.Enabled {
		log.Info().Msg("Redis disabled, rate limiting is off")
	}
	return rc, lc
}

func BuildAuthConfig(cfg Source, log *zerolog.Logger) (AuthConfig, error) {
	ac := AuthConfig{
		JWTSecret: cfg.GetString("auth.jwt_secret"),
		TokenTTL:  cfg.GetDuration("auth.token_ttl"),
	}
	if len(ac.JWTSecret) < 16 {
		return ac, fmt.Errorf("auth.jwt_secret must be at least 16 characters")
	}
	if ac.TokenTTL <= 0 {
		ac.TokenTTL = 24 * time.Hour
		log.Info().Msg("auth.token_ttl not set, using 24h")
	}
	return ac, nil
}

func BuildMailConfig(cfg Source, log *zerolog.Logger) MailConfig {
	mc := MailConfig{
		Enabled:  cfg.GetBool("mail.enabled"),
		Host:     cfg.GetString("mail.host"),
		Port:     cfg.GetInt("mail.port"),
		From:     cfg.GetString("mail.from"),
		Password: cfg.GetString("mail.password"),
	}
	if mc.Port == 0 {
		mc.Port = 587
	}
	if mc.Enabled && (mc.Host == "" || mc.From == "") {
		log.Warn().Msg("mail.host or mail.from missing, email delivery disabled")
		mc.Enabled = false
	}
	return mc
}

func BuildTicketingConfig(cfg Source, log *zerolog.Logger) TicketingConfig {
	tc := TicketingConfig{
		MaxQuantity:       cfg.GetInt("ticketing.max_quantity_per_order"),
		ReconcileInterval: cfg.GetDuration("ticketing.reconcile_interval"),
	}
	if tc.MaxQuantity < 0 {
		log.Warn().Int("max_quantity", tc.MaxQuantity).Msg("negative max quantity ignored")
		tc.MaxQuantity = 0
	}
	return tc
}
