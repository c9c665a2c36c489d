package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/cryams/cryams/internal/config"
	"github.com/cryams/cryams/internal/service"
	"github.com/cryams/cryams/internal/store"
)

// newLogger builds the process logger from the log section. Logs go to
// stderr so that command output on stdout stays machine readable.
func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// openStores loads the profile store and the request queue from the data
// directory.
func openStores(cfg *config.Config, logger *slog.Logger) (*store.ProfileStore, *store.RequestQueue) {
	profiles := store.OpenProfiles(cfg.ProfilesPath(), logger)
	requests := store.OpenRequests(cfg.RequestsPath(), profiles, logger)
	return profiles, requests
}

// openAuth loads the admin credential. Commands that never issue sessions
// get a throwaway signing secret. An unreadable credential is returned as
// an error together with a usable service.
func openAuth(cfg *config.Config) (*service.AuthService, error) {
	if _, err := cfg.EnsureJWTSecret(); err != nil {
		return nil, err
	}
	return service.NewAuthService(store.NewCredentialFile(cfg.CredentialPath()), service.AuthOptions{
		BcryptCost:        cfg.Auth.BcryptCost,
		MinPasswordLength: cfg.Auth.MinPasswordLength,
		StrongPasswords:   cfg.Auth.StrongPasswords,
		JWTSecret:         cfg.Auth.JWTSecret,
	})
}

// openAuthStrict is openAuth for commands that cannot work with an
// unreadable credential.
func openAuthStrict(cfg *config.Config) (*service.AuthService, error) {
	authSvc, err := openAuth(cfg)
	if errors.Is(err, service.ErrCredentialUnusable) {
		return nil, fmt.Errorf("%w; run 'cryams admin setup --force' to replace it", err)
	}
	return authSvc, err
}

// readSecret prompts for a secret without echo. When stdin is not a
// terminal one line is read instead, so scripts can pipe passwords in.
func readSecret(out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}

	var line strings.Builder
	buf := make([]byte, 1)
	for {
		n, err := os.Stdin.Read(buf)
		if n == 1 {
			if buf[0] == '\n' {
				break
			}
			line.WriteByte(buf[0])
		}
		if err != nil {
			if errors.Is(err, io.EOF) && line.Len() > 0 {
				break
			}
			return "", fmt.Errorf("failed to read password: %w", err)
		}
	}
	fmt.Fprintln(out)
	return strings.TrimRight(line.String(), "\r"), nil
}

// readNewPassword prompts twice and checks that both entries match.
func readNewPassword(out io.Writer) (string, error) {
	password, err := readSecret(out, "Password: ")
	if err != nil {
		return "", err
	}
	confirm, err := readSecret(out, "Confirm password: ")
	if err != nil {
		return "", err
	}
	if password != confirm {
		return "", fmt.Errorf("passwords do not match")
	}
	return password, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// versionString returns a display version string.
func versionString() string {
	if appVersion == "" || appVersion == "dev" {
		return "dev"
	}
	if strings.HasPrefix(appVersion, "v") {
		return appVersion
	}
	return "v" + appVersion
}
