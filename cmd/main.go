package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/zlog"
	"golang.org/x/sync/errgroup"

	"eventTickets/cmd/buildCFG"
	"eventTickets/cmd/middleware"
	"eventTickets/internal/api/api"
	rabbitReader "eventTickets/internal/consumerWorker"
	"eventTickets/internal/dto"
	"eventTickets/internal/identity"
	"eventTickets/internal/inventory"
	"eventTickets/internal/issuer"
	"eventTickets/internal/mailer"
	"eventTickets/internal/rabbit"
	"eventTickets/internal/redemption"
	"eventTickets/internal/repo"
	"eventTickets/internal/service"
)

func main() {
	zlog.Init()
	log := zlog.Logger

	cfg := config.New()
	if err := cfg.Load("config.yaml", "", "TICKETS"); err != nil {
		log.Fatal().Msgf("failed to load configuration: %v", err)
	}
	serverCfg := buildCFG.BuildServerConfig(cfg, &log)

	storageCfg, err := buildCFG.BuildStorageConfig(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build storage config")
	}
	repository, migrationPath := openRepository(cfg, storageCfg, &log)
	if storageCfg.SeedSampleEvents {
		n, err := repo.SeedSampleEvents(context.Background(), repository, time.Now())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to seed sample events")
		}
		log.Info().Int("events", n).Msg("sample events seeded")
	}

	authCfg, err := buildCFG.BuildAuthConfig(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build auth config")
	}
	ticketingCfg := buildCFG.BuildTicketingConfig(cfg, &log)

	rabbitCfg, err := buildCFG.BuildRabbitConfig(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load RabbitMQ config")
	}
	var publisher rabbit.Publisher = rabbit.Nop{}
	var rmq *rabbit.Client
	if rabbitCfg.Enabled {
		rmq, err = rabbit.NewRabbit(rabbitCfg.Url, rabbitCfg.Exchange, rabbitCfg.Queue, []string{
			dto.KeyOrderCompleted, dto.KeyTicketRedeemed, dto.KeyTicketCancelled,
		}, &log)
		if err != nil {
			log.Fatal().Msgf("Failed to connect to RabbitMQ: %v", err)
		}
		defer rmq.Close()
		publisher = rmq
	}

	limiter, closeRedis := buildLimiter(cfg, &log)
	defer closeRedis()

	inv := inventory.New(&log)
	provider := identity.NewProvider(repository, &log, authCfg.JWTSecret, authCfg.TokenTTL)
	ticketIssuer := issuer.New(repository, inv, &log, issuer.Options{MaxQuantity: ticketingCfg.MaxQuantity})
	scanner := redemption.NewScanner(repository, inv, &log)

	serviceInstance := service.NewService(repository, &log, publisher, provider, ticketIssuer, scanner)
	app := api.NewRouters(&api.Routers{
		Service:        serviceInstance,
		Verifier:       provider,
		Limiter:        limiter,
		Log:            &log,
		GinMode:        serverCfg.GinMode,
		AllowedOrigins: serverCfg.AllowedOrigins,
	})
	srv := &http.Server{Addr: ":" + serverCfg.Port, Handler: app}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Msgf("Starting server on %s", serverCfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Initiating shutdown...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), serverCfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return inventory.NewReconciler(repository, &log, ticketingCfg.ReconcileInterval).Run(gctx)
	})

	if rmq != nil {
		reader := rabbitReader.NewReader(rmq, buildMailer(cfg, &log), &log)
		if err := reader.Start(gctx); err != nil {
			log.Error().Err(err).Msg("notification worker not started")
		} else {
			g.Go(func() error {
				<-gctx.Done()
				reader.Stop()
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("service stopped with error")
	}

	if storageCfg.MigrateDownOnClose && migrationPath != "" {
		log.Info().Msg("Rolling back migrations...")
		if err := repository.MigrateDown(migrationPath); err != nil {
			log.Error().Msgf("failed to rollback migrations: %v", err)
		}
	}
	log.Info().Msg("Shutdown complete")
}

func openRepository(cfg *config.Config, sc buildCFG.StorageConfig, log *zerolog.Logger) (repo.Repository, string) {
	if sc.Driver == buildCFG.DriverMemory {
		log.Warn().Msg("using in-memory storage, data is lost on restart")
		return repo.NewMemoryRepository(), ""
	}

	masterDSN, slaveDSNs, poolOptions, err := buildCFG.BuildDBConfig(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build DB config")
	}
	db, err := dbpg.New(masterDSN, slaveDSNs, poolOptions)
	if err != nil {
		log.Fatal().Msgf("failed to connect to DB: %v", err)
	}
	repository, err := repo.NewRepository(db, log)
	if err != nil {
		log.Fatal().Msgf("failed to initialize repository: %v", err)
	}
	log.Info().Msg("Database connected successfully")

	migrationPath := sc.MigrationsDir
	if !filepath.IsAbs(migrationPath) {
		cwd, err := os.Getwd()
		if err != nil {
			log.Fatal().Err(err).Msg("cannot get working directory")
		}
		migrationPath = filepath.Join(cwd, migrationPath)
	}
	if err := repository.MigrateUp(migrationPath); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	return repository, migrationPath
}

func buildLimiter(cfg *config.Config, log *zerolog.Logger) (*middleware.RateLimiter, func()) {
	redisCfg, limits := buildCFG.BuildRedisConfig(cfg, log)
	if !redisCfg.Enabled {
		return nil, func() {}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     redisCfg.Addr,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		log.Warn().Err(err).Msg("Redis unreachable, rate limiting disabled")
		_ = client.Close()
		return nil, func() {}
	}
	log.Info().Str("addr", redisCfg.Addr).Msg("Redis connected")

	return middleware.NewRateLimiter(client, log, limits.Window, map[string]int{
		"register": limits.Register,
		"scan":     limits.Scan,
	}), func() { _ = client.Close() }
}

func buildMailer(cfg *config.Config, log *zerolog.Logger) mailer.Sender {
	mc := buildCFG.BuildMailConfig(cfg, log)
	if !mc.Enabled {
		return mailer.LogOnly{Log: log}
	}
	return mailer.NewSMTP(mailer.Config{
		Host:     mc.Host,
		Port:     mc.Port,
		From:     mc.From,
		Password: mc.Password,
	}, log)
}
