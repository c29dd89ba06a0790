package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"mission-board/internal/ai"
	"mission-board/internal/bot"
	"mission-board/internal/config"
	"mission-board/internal/repository"
	"mission-board/internal/service"
	"mission-board/internal/web"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "missionboard",
		Short:         "Personal kanban board with a weekly Hit List",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	root.AddCommand(serveCmd(), resetCmd(), userCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		log.Fatalf("missionboard: %v", err)
	}
}

// app holds everything the subcommands share.
type app struct {
	cfg      config.Config
	db       *gorm.DB
	users    *repository.UserRepository
	board    *service.BoardService
	subtasks *service.SubtaskService
	resets   *service.ResetService
}

func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}

	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	tx := repository.NewTransactor(db)

	var suggester service.Suggester
	if cfg.AnthropicAPIKey != "" {
		client, err := ai.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)
		if err != nil {
			return nil, fmt.Errorf("anthropic: %w", err)
		}
		suggester = client
	} else {
		log.Println("[info] ANTHROPIC_API_KEY not set, subtask suggestions are disabled")
	}

	return &app{
		cfg:      cfg,
		db:       db,
		users:    userRepo,
		board:    service.NewBoardService(tx, taskRepo, cfg.Now),
		subtasks: service.NewSubtaskService(tx, taskRepo, suggester),
		resets:   service.NewResetService(tx, taskRepo, settingsRepo, userRepo, cfg.Now),
	}, nil
}

func (a *app) close() {
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the Telegram bot and the weekly reset job",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	scheduler := service.NewSchedulerService(a.cfg.Location)
	if _, err := scheduler.ScheduleWeekly(time.Monday, a.cfg.ResetTime, func() {
		jobCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		if err := a.resets.RunAll(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("weekly reset: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule weekly reset: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Catch up on a reset missed while the process was down.
	if err := a.resets.RunAll(ctx); err != nil {
		log.Printf("startup reset: %v", err)
	}

	errCh := make(chan error, 2)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           web.NewServer(a.board, a.subtasks, a.resets, a.users).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("[info] http listening on %s", a.cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()

	if a.cfg.TelegramToken != "" {
		telegramBot, err := bot.New(a.cfg.TelegramToken, a.users, a.board, a.subtasks, a.resets, a.cfg.Now)
		if err != nil {
			return fmt.Errorf("bot: %w", err)
		}
		go func() {
			if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("bot: %w", err)
			}
		}()
	} else {
		log.Println("[info] TELEGRAM_TOKEN not set, bot is disabled")
	}

	log.Println("Mission board started.")
	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	log.Println("Shutdown complete.")
	return runErr
}

func resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Run the weekly reset for every user whose week has rolled over",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()
			return a.resets.RunAll(cmd.Context())
		},
	}
}

func userCmd() *cobra.Command {
	user := &cobra.Command{
		Use:   "user",
		Short: "Manage API users",
	}
	user.AddCommand(&cobra.Command{
		Use:   "add <name>",
		Short: "Create a user and print its API token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			created, err := a.users.Create(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %d created, token: %s\n", created.ID, *created.APIToken)
			return nil
		},
	})
	return user
}
