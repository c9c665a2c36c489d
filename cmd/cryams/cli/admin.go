package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cryams/cryams/internal/service"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage the administrator account",
		Long:  "Create, inspect or recover the single administrator account that moderates profile requests.",
	}

	cmd.AddCommand(newAdminSetupCmd())
	cmd.AddCommand(newAdminPasswdCmd())
	cmd.AddCommand(newAdminStatusCmd())

	return cmd
}

// ---------- admin setup ----------

func newAdminSetupCmd() *cobra.Command {
	var (
		username string
		password string
		force    bool
	)

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Create the administrator account",
		Example: `  cryams admin setup --username admin              # prompts for password
  echo "$PW" | cryams admin setup --username admin  # password from stdin
  cryams admin setup --username admin --force       # replace a lost or corrupt account`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminSetup(cmd, username, password, force)
		},
	}

	cmd.Flags().StringVar(&username, "username", "admin", "Administrator username")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted if omitted)")
	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing or unreadable account")

	return cmd
}

func runAdminSetup(cmd *cobra.Command, username, password string, force bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	authSvc, err := openAuth(cfg)
	if err != nil && !(force && errors.Is(err, service.ErrCredentialUnusable)) {
		if errors.Is(err, service.ErrCredentialUnusable) {
			return fmt.Errorf("%w; use --force to replace it", err)
		}
		return err
	}
	if !force && !authSvc.NeedsSetup() {
		return fmt.Errorf("an administrator account already exists (use --force to replace it)")
	}

	if password == "" {
		password, err = readNewPassword(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
	}

	if force {
		err = authSvc.ResetAdminConfig(username, password)
	} else {
		err = authSvc.CreateAdminConfig(username, password)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Administrator %q configured in %s\n", username, cfg.CredentialPath())
	return nil
}

// ---------- admin passwd ----------

func newAdminPasswdCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Change the administrator password",
		Long:  "Change the administrator password. Existing sessions stop working.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminPasswd(cmd)
		},
	}
	return cmd
}

func runAdminPasswd(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	authSvc, err := openAuthStrict(cfg)
	if err != nil {
		return err
	}
	if authSvc.NeedsSetup() {
		return fmt.Errorf("no administrator account yet; run 'cryams admin setup'")
	}

	current, err := readSecret(cmd.ErrOrStderr(), "Current password: ")
	if err != nil {
		return err
	}
	next, err := readNewPassword(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if err := authSvc.ChangePassword(current, next); err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			return fmt.Errorf("current password is wrong")
		}
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Password changed.")
	return nil
}

// ---------- admin status ----------

func newAdminStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether the administrator account is configured",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminStatus(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runAdminStatus(cmd *cobra.Command, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	authSvc, loadErr := openAuth(cfg)
	if authSvc == nil {
		return loadErr
	}

	state := "configured"
	info, ok := authSvc.Admin()
	switch {
	case ok:
	case authSvc.NeedsSetup():
		state = "setup required"
	default:
		state = "unreadable"
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		status := map[string]interface{}{"state": state, "path": cfg.CredentialPath()}
		if ok {
			status["admin"] = info
		}
		return printJSON(out, status)
	}

	fmt.Fprintf(out, "Credential: %s\n", cfg.CredentialPath())
	fmt.Fprintf(out, "State:      %s\n", state)
	if !ok {
		if loadErr != nil {
			fmt.Fprintf(os.Stderr, "  %v\n", loadErr)
		}
		return nil
	}
	fmt.Fprintf(out, "Username:   %s\n", info.Username)
	fmt.Fprintf(out, "Created:    %s\n", info.CreatedAt.Format(time.RFC3339))
	if info.LastLogin != nil {
		fmt.Fprintf(out, "Last login: %s\n", info.LastLogin.Format(time.RFC3339))
	}
	if info.LastPasswordChange != nil {
		fmt.Fprintf(out, "Password changed: %s\n", info.LastPasswordChange.Format(time.RFC3339))
	}
	return nil
}
