package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/wanderatlas/tourism_admin/internal/audit"
	"github.com/wanderatlas/tourism_admin/internal/config"
	"github.com/wanderatlas/tourism_admin/internal/events"
	"github.com/wanderatlas/tourism_admin/internal/httpserver"
	"github.com/wanderatlas/tourism_admin/internal/logging"
	authmw "github.com/wanderatlas/tourism_admin/internal/middleware/auth"
	"github.com/wanderatlas/tourism_admin/internal/middleware/loggingmw"
	"github.com/wanderatlas/tourism_admin/internal/permission"
	"github.com/wanderatlas/tourism_admin/internal/service"
	"github.com/wanderatlas/tourism_admin/internal/tokens"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.LogLevel)

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := config.InitDB(initCtx, cfg.DatabaseURL)
	if err != nil {
		cancel()
		log.Fatalf("db init error: %v", err)
	}

	if err := service.SeedAdmin(logging.IntoContext(initCtx, logger), db, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		cancel()
		log.Fatalf("seed admin: %v", err)
	}
	cancel()

	producer := events.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer producer.Close()

	tokenSvc := tokens.NewService(cfg.AccessSecret, cfg.RefreshSecret)
	authSvc := &service.AuthService{
		DB:     db,
		Tokens: tokenSvc,
		Events: producer,
	}
	accountSvc := &service.AccountService{DB: db}
	engine := permission.NewEngine(db)
	auditLog := audit.NewLogger(db)

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second
	e.Use(loggingmw.RequestLogger(logger))

	httpserver.Register(e, &httpserver.Deps{
		AuthHandler: &httpserver.AuthHTTP{
			Auth:     authSvc,
			Accounts: accountSvc,
			Audit:    auditLog,
		},
		AuthMW: &authmw.Middleware{
			Tokens: tokenSvc,
			Auth:   authSvc,
			Engine: engine,
		},
	})

	go func() {
		addr := fmt.Sprintf(":%d", cfg.ServerPort)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("echo start: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("echo shutdown: %v", err)
	}
}
