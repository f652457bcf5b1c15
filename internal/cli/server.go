package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trivia-client/internal/app"
	"trivia-client/internal/config"
	"trivia-client/internal/domain"
	"trivia-client/internal/gameapi"
	"trivia-client/internal/infra/memory"
	historypg "trivia-client/internal/infra/postgres"
	redisstore "trivia-client/internal/infra/redis"
	transport "trivia-client/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewServeCmd builds the CLI subcommand to start the gateway.
func NewServeCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the session gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Backend.URL == "" {
		return fmt.Errorf("backend url not configured")
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 24*time.Hour)

	var identityStore app.IdentityStore
	if redisClient != nil {
		identityStore = redisstore.NewIdentityStore(redisClient, redisTTL)
	} else {
		store := memory.NewIdentityStore()
		if cfg.Player.ID != 0 {
			_ = store.Save(ctx, domain.Identity{
				PlayerID:    cfg.Player.ID,
				DisplayName: cfg.Player.Name,
				RoomCode:    cfg.Player.RoomCode,
			})
		}
		identityStore = store
	}

	var recorder app.Recorder
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		recorder = historypg.NewHistory(pool)
	}

	backendTimeout := config.TTLDuration(cfg.Backend.Timeout, 10*time.Second)
	client := gameapi.NewClient(cfg.Backend.URL, backendTimeout)

	leaderboardTTL := config.TTLDuration(cfg.Leaderboard.TTL, time.Minute)
	leaderboard := memory.NewLeaderboardCache(client, leaderboardTTL)

	gameCfg := app.Config{
		QuestionSeconds: cfg.Game.QuestionSeconds,
		Lives:           cfg.Game.Lives,
		StartDifficulty: cfg.Game.StartDifficulty,
		MaxQuestions:    cfg.Game.MaxQuestions,
	}
	wsHandler := transport.NewWSHandler(client, identityStore, recorder, leaderboard, client, gameCfg)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting trivia session gateway on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
