package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nihalkurra/student-collab-hub/pkg/api"
	"github.com/nihalkurra/student-collab-hub/pkg/config"
	"github.com/nihalkurra/student-collab-hub/pkg/services"
	"github.com/nihalkurra/student-collab-hub/pkg/storage"
	"github.com/nihalkurra/student-collab-hub/pkg/trace"
)

func main() {
	configPath := flag.String("config", "studenthub.toml", "path to the TOML config file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := trace.Init("student-collab-hub")
	if err != nil {
		logger.Error("error initializing tracing", "msg", err.Error())
		os.Exit(1)
	}
	defer shutdownTracing(context.Background())

	mongoClient, err := storage.MongoDBClient(ctx, cfg.MongoDB.Address, cfg.MongoDB.Port)
	if err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
	defer mongoClient.Disconnect(context.Background())
	db := mongoClient.Database(cfg.MongoDB.Database)
	if err := storage.EnsureIndexes(ctx, db); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}

	redisClient := storage.RedisClient(cfg.Redis.Address, cfg.Redis.Port)
	memcacheClient := storage.MemCachedClient(cfg.MemCached.Address, cfg.MemCached.Port)

	ch, conn, err := storage.RabbitMQClient(ctx, cfg.RabbitMQ.Username, cfg.RabbitMQ.Password, cfg.RabbitMQ.Address, cfg.RabbitMQ.Port)
	if err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
	defer conn.Close()
	defer ch.Close()

	fanout, err := services.NewFeedPublisher(logger, ch)
	if err != nil {
		logger.Error("error declaring feed exchange", "msg", err.Error())
		os.Exit(1)
	}

	authSvc := services.NewAuthService(logger, db, memcacheClient, cfg.Auth.Secret, time.Duration(cfg.Auth.TokenTTLHours)*time.Hour)
	userSvc := services.NewUserService(logger, mongoClient, db)
	postSvc := services.NewPostService(logger, mongoClient, db, fanout)
	commentSvc := services.NewCommentService(logger, mongoClient, db)
	feedSvc := services.NewFeedService(logger, redisClient, db)
	mediaSvc := services.NewMediaService(logger, cfg.Media.UploadURL)

	worker := services.NewFanoutWorker(logger, redisClient, db,
		cfg.RabbitMQ.Username, cfg.RabbitMQ.Password, cfg.RabbitMQ.Address, cfg.RabbitMQ.Port,
		cfg.RabbitMQ.NumWorkers)
	go func() {
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("fan-out worker stopped", "msg", err.Error())
		}
	}()

	srv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: api.NewServer(logger, authSvc, userSvc, postSvc, commentSvc, feedSvc, mediaSvc),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("api available", "addr", cfg.HTTP.Addr,
		"mongodb_addr", cfg.MongoDB.Address, "mongodb_port", cfg.MongoDB.Port,
		"redis_addr", cfg.Redis.Address, "redis_port", cfg.Redis.Port,
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error(err.Error())
		os.Exit(1)
	}
}
