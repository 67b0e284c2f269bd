package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/walletgate/adapters/directory"
	"github.com/layer-3/walletgate/adapters/events"
	"github.com/layer-3/walletgate/adapters/store"
	"github.com/layer-3/walletgate/adapters/tokenizer"
	"github.com/layer-3/walletgate/adapters/verifier"
	"github.com/layer-3/walletgate/config"
	"github.com/layer-3/walletgate/core"
	"github.com/layer-3/walletgate/internal/log"
	"github.com/layer-3/walletgate/ports"
	"github.com/layer-3/walletgate/service"
	transport "github.com/layer-3/walletgate/transport/http"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger := log.New("main")
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := log.Configure(cfg.Env, cfg.LogLevel); err != nil {
		logger := log.New("main")
		logger.Fatal().Err(err).Msg("failed to configure logging")
	}
	logger := log.New("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("walletgate stopped")
	}
	logger.Info().Msg("walletgate stopped")
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	signKey, err := loadSigningKey(cfg.JWTPrivateKey, logger)
	if err != nil {
		return err
	}

	clock := core.SystemClock{}
	storeOpts := []store.Option{store.WithNonceTTL(cfg.NonceTTL), store.WithClock(clock)}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return err
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
	}

	g, gctx := errgroup.WithContext(ctx)

	var (
		nonces      ports.NonceStore
		revocations ports.RevocationStore
	)
	switch cfg.NonceStore {
	case config.StoreRedis:
		rs := store.NewRedisStore(redisClient, storeOpts...)
		nonces, revocations = rs, rs
	case config.StoreBolt:
		bs, err := store.NewBoltStore(cfg.BoltPath, log.New("store"), storeOpts...)
		if err != nil {
			return err
		}
		defer bs.Close()
		mem := store.NewMemoryStore(storeOpts...)
		nonces, revocations = bs, mem
		g.Go(func() error { return bs.Run(gctx) })
		g.Go(func() error { return mem.Run(gctx) })
	default:
		mem := store.NewMemoryStore(storeOpts...)
		nonces, revocations = mem, mem
		g.Go(func() error { return mem.Run(gctx) })
	}
	logger.Info().Str("backend", cfg.NonceStore).Dur("ttl", cfg.NonceTTL).Msg("nonce store ready")

	publisher, err := newPublisher(redisClient)
	if err != nil {
		return err
	}
	defer publisher.Close()

	db, err := directory.OpenSQLite(cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	initCtx, cancel := context.WithTimeout(ctx, cfg.DirectoryTimeout)
	users, err := directory.NewBunDirectory(initCtx, db, clock)
	cancel()
	if err != nil {
		return err
	}

	challenges := service.NewChallengeService(
		verifier.NewEthVerifier(),
		nonces,
		cfg.SIWEDomain,
		clock,
		log.New("challenge"),
	)
	authService := service.NewAuthService(
		challenges,
		tokenizer.NewJWTTokenizer(signKey, cfg.JWTIssuer, cfg.SessionTTL, clock),
		users,
		revocations,
		events.NewWatermillPublisher(publisher, cfg.EventsTopicPrefix),
		service.WithDirectoryTimeout(cfg.DirectoryTimeout),
		service.WithLogger(log.New("auth")),
	)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           transport.SetupRouter(authService, log.New("http")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// newPublisher streams events through Redis when it is configured, and keeps
// them in process otherwise.
func newPublisher(client *redis.Client) (message.Publisher, error) {
	wmLogger := watermill.NewStdLogger(false, false)
	if client == nil {
		return gochannel.NewGoChannel(gochannel.Config{}, wmLogger), nil
	}
	return redisstream.NewPublisher(
		redisstream.PublisherConfig{
			Client: client,
		},
		wmLogger,
	)
}
