package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cryams/cryams/internal/config"
	"github.com/cryams/cryams/internal/handler"
	"github.com/cryams/cryams/internal/mail"
	"github.com/cryams/cryams/internal/mcp"
	"github.com/cryams/cryams/internal/server"
	"github.com/cryams/cryams/internal/service"
	"github.com/cryams/cryams/internal/sticker"
	"github.com/cryams/cryams/internal/validate"
)

const banner = `
  ___ _ __ _   _  __ _ _ __ ___  ___
 / __| '__| | | |/ _' | '_ ' _ \/ __|
| (__| |  | |_| | (_| | | | | | \__ \
 \___|_|   \__, |\__,_|_| |_| |_|___/
           |___/
`

func newServeCmd() *cobra.Command {
	var noMCP bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the cryams web server",
		Long: `Start the HTTP server with the public pages, the admin dashboard, the JSON
API under /api/v1 and the MCP endpoint under /mcp.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(noMCP)
		},
	}

	cmd.Flags().IntP("port", "p", 3000, "HTTP listen port")
	cmd.Flags().String("host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().String("base-url", "", "Public origin encoded into QR codes")
	cmd.Flags().BoolVar(&noMCP, "no-mcp", false, "Do not mount the MCP endpoint")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))
	viper.BindPFlag("server.base_url", cmd.Flags().Lookup("base-url"))

	return cmd
}

func runServe(noMCP bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log, os.Stderr)

	fmt.Print(banner)
	fmt.Println()

	// 1. Session signing secret
	generated, err := cfg.EnsureJWTSecret()
	if err != nil {
		return err
	}
	if generated {
		logger.Warn("auth.jwt_secret is empty, using a random secret; sessions end on restart")
	}

	// 2. File stores
	profiles, requests := openStores(cfg, logger)
	logger.Info("data loaded", "dir", cfg.DataDir, "profiles", profiles.Len(), "requests", requests.Len())

	// 3. Admin credential
	authSvc, err := openAuth(cfg)
	switch {
	case errors.Is(err, service.ErrCredentialUnusable):
		logger.Error("admin login disabled until the credential is replaced with 'cryams admin setup --force'", "error", err)
	case err != nil:
		return fmt.Errorf("init auth: %w", err)
	}
	if authSvc.NeedsSetup() {
		logger.Warn("no admin account found - visit /admin/setup or run: cryams admin setup")
	}

	// 4. Mail relay
	sender, err := mail.New(mailConfig(cfg), logger)
	if err != nil {
		return fmt.Errorf("init mail: %w", err)
	}

	// 5. Services and handlers
	v := validate.New()
	svc := service.NewProfiles(profiles, requests, v, sender, logger)
	svc.NotifyAddress = cfg.Mail.AdminNotify
	svc.AdminURL = cfg.BaseURL() + "/admin"
	relay := service.NewRelay(profiles, sender, v, logger)

	pages, err := handler.NewPages(handler.PageConfig{
		Profiles:          profiles,
		Requests:          requests,
		Service:           svc,
		Relay:             relay,
		Auth:              authSvc,
		Stickers:          sticker.NewRenderer(cfg.BaseURL()),
		Validate:          v,
		SessionTTL:        cfg.SessionTTL(),
		SecureCookies:     strings.HasPrefix(cfg.BaseURL(), "https://"),
		MinPasswordLength: cfg.Auth.MinPasswordLength,
		StrongPasswords:   cfg.Auth.StrongPasswords,
		Logger:            logger,
	})
	if err != nil {
		return fmt.Errorf("init pages: %w", err)
	}

	handlers := server.Handlers{
		API:     handler.NewAPIHandler(profiles, requests, svc, authSvc, v, cfg.SessionTTL(), logger),
		Pages:   pages,
		OpenAPI: handler.NewOpenAPIHandler(cfg.BaseURL(), versionString()),
	}
	if !noMCP {
		handlers.MCP = mcp.NewMCPServer(profiles, requests, versionString(), logger).Handler()
	}

	// 6. Build and start HTTP server
	srv := server.New(server.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ShutdownTimeout: cfg.ShutdownTimeout(),
		CORSOrigins:     cfg.Server.CORSOrigins,
		TrustProxy:      cfg.Server.TrustProxy,
		PublicPerMinute: cfg.RateLimit.PublicPerMinute,
		LoginPerMinute:  cfg.RateLimit.LoginPerMinute,
	}, handlers, authSvc, logger)

	fmt.Printf("→ cryams %s\n", versionString())
	fmt.Printf("→ Listening on http://%s\n", cfg.Addr())
	fmt.Printf("→ Public URL: %s\n", cfg.BaseURL())
	fmt.Printf("→ Admin UI:   %s/admin\n", cfg.BaseURL())
	fmt.Printf("→ OpenAPI:    %s/openapi.json\n", cfg.BaseURL())
	fmt.Printf("→ Profiles:   %d, pending requests: %d\n", profiles.Len(), requests.Len())
	fmt.Println()

	return srv.ListenAndServe()
}

func mailConfig(cfg *config.Config) mail.Config {
	return mail.Config{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		From:     cfg.Mail.From,
		TLS:      cfg.Mail.TLS,
	}
}
