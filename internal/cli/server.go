package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"classquiz-service/internal/app"
	"classquiz-service/internal/config"
	"classquiz-service/internal/infra/memory"
	pgstore "classquiz-service/internal/infra/postgres"
	rediscache "classquiz-service/internal/infra/redis"
	transport "classquiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
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

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var quizRepo app.QuizRepository
	var regRepo app.RegistrationRepository
	var resultRepo app.ResultRepository
	if pool != nil {
		store := pgstore.NewStore(pool)
		quizRepo, regRepo, resultRepo = store, store, store
	} else {
		store := memory.NewStore()
		quizRepo, regRepo, resultRepo = store, store, store
	}

	cacheTTL := config.TTLDuration(cfg.Quiz.CacheTTL, 10*time.Minute)
	if redisClient != nil {
		quizRepo = rediscache.NewQuizCache(redisClient, quizRepo, cacheTTL)
	} else {
		quizRepo = memory.NewQuizCache(quizRepo, cacheTTL)
	}

	var codes app.CodeStore
	if redisClient != nil {
		codes = rediscache.NewCodeStore(redisClient)
	} else {
		codes = memory.NewCodeStore()
	}
	codeTTL := config.TTLDuration(cfg.Codes.TTL, 5*time.Minute)

	service := app.NewQuizService(quizRepo, regRepo, resultRepo)

	if pool == nil {
		if err := seedSampleQuiz(ctx, service); err != nil {
			return err
		}
	}

	handler := transport.NewHandler(service, codes, codeTTL)
	wsHandler := transport.NewWSHandler(service, codes)

	mux := http.NewServeMux()
	handler.Register(mux)
	mux.HandleFunc("/ws/attempt", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting classquiz service on :%s", finalPort)
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

// seedSampleQuiz loads a demo quiz into the in-memory store so the service
// is usable without Postgres. Registration opens immediately and the
// attempt window follows an hour later.
func seedSampleQuiz(ctx context.Context, service *app.QuizService) error {
	now := time.Now()
	quiz, err := service.CreateQuiz(ctx, app.CreateQuizInput{
		TeacherID:       "teacher-demo",
		Title:           "Networking Basics",
		Course:          "CS-301",
		Section:         "A",
		Password:        "letmein",
		DurationMinutes: 30,
		RegStart:        now,
		RegEnd:          now.Add(time.Hour),
		AttemptStart:    now.Add(time.Hour),
		AttemptEnd:      now.Add(3 * time.Hour),
		Questions: []app.QuestionInput{
			{
				Text:          "Which protocol does ping use?",
				Options:       []string{"TCP", "UDP", "ICMP", "HTTP"},
				CorrectAnswer: 2,
			},
			{
				Text:          "Default HTTPS port?",
				Options:       []string{"80", "443", "8080", "22"},
				CorrectAnswer: 1,
			},
		},
	})
	if err != nil {
		return err
	}
	log.Printf("seeded sample quiz %s (password: letmein)", quiz.ID)
	return nil
}
