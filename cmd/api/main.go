package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"github.com/duetrack/duetrack/internal/auth"
	"github.com/duetrack/duetrack/internal/autopay"
	"github.com/duetrack/duetrack/internal/bill"
	billStore "github.com/duetrack/duetrack/internal/bill/store"
	"github.com/duetrack/duetrack/internal/config"
	"github.com/duetrack/duetrack/internal/database"
	"github.com/duetrack/duetrack/internal/export"
	duetrackHttp "github.com/duetrack/duetrack/internal/http"
	autopayHandler "github.com/duetrack/duetrack/internal/http/autopay"
	authHandler "github.com/duetrack/duetrack/internal/http/authn"
	billHandler "github.com/duetrack/duetrack/internal/http/bill"
	exportHandler "github.com/duetrack/duetrack/internal/http/export"
	importHandler "github.com/duetrack/duetrack/internal/http/importcsv"
	tenantHandler "github.com/duetrack/duetrack/internal/http/tenant"
	usageHandler "github.com/duetrack/duetrack/internal/http/usage"
	userHandler "github.com/duetrack/duetrack/internal/http/user"
	"github.com/duetrack/duetrack/internal/importer"
	"github.com/duetrack/duetrack/internal/tenant"
	tenantStore "github.com/duetrack/duetrack/internal/tenant/store"
	"github.com/duetrack/duetrack/internal/tier"
	tierStore "github.com/duetrack/duetrack/internal/tier/store"
	"github.com/duetrack/duetrack/internal/user"
	userStore "github.com/duetrack/duetrack/internal/user/store"
)

func main() {
	_ = godotenv.Load()

	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		TimeFormat: time.Kitchen,
	})))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	db, err := database.New(cfg.ConnectionString())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(context.Background(), db); err != nil {
		slog.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	bills := billStore.New(db)
	gate := tier.NewGate(cfg.SelfHosted(), tier.DefaultTable(), tierStore.New(db))
	jwts := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	var (
		userService   = user.NewService(userStore.New(db))
		authenticator = auth.NewPasswordAuthenticator(userStore.New(db))
		tenantService = tenant.NewService(tenantStore.New(db), gate, cfg.SelfHosted())
		billService   = bill.NewService(bills, gate)
		autopayRunner = autopay.NewProcessor(bills)
		importService = importer.NewService(billService)
		exportService = export.NewService(billService, gate)
	)

	var (
		authH    = authHandler.NewHandler(authenticator, jwts, cfg.Auth.EnableRegistration)
		groupsH  = tenantHandler.NewHandler(tenantService, cfg.SelfHosted())
		billsH   = billHandler.NewHandler(billService)
		autopayH = autopayHandler.NewHandler(autopayRunner)
		importH  = importHandler.NewHandler(importService)
		exportH  = exportHandler.NewHandler(exportService)
		usersH   = userHandler.NewHandler(userService, authenticator)
		usageH   = usageHandler.NewHandler(gate)
	)

	router := duetrackHttp.New(jwts, tenantService,
		authH, groupsH, billsH, autopayH, importH, exportH, usersH, usageH)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	slog.Info("starting server", "addr", server.Addr, "mode", cfg.App.Mode)

	if err := server.ListenAndServe(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
