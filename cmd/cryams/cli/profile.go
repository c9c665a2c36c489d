package cli

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cryams/cryams/internal/service"
	"github.com/cryams/cryams/internal/validate"
)

func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage approved profiles",
		Long:  "Create, list and delete the profiles that QR stickers point to.",
	}

	cmd.AddCommand(newProfileCreateCmd())
	cmd.AddCommand(newProfileListCmd())
	cmd.AddCommand(newProfileDeleteCmd())

	return cmd
}

// ---------- profile create ----------

func newProfileCreateCmd() *cobra.Command {
	var in validate.ProfileInput

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a profile without moderation",
		Example: `  cryams profile create --name "Anna Beispiel" --email anna@example.com
  cryams profile create --name Anna --email anna@example.com --sticker 2x3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfileCreate(cmd, in)
		},
	}

	cmd.Flags().StringVar(&in.Name, "name", "", "Owner name shown on the profile page (required)")
	cmd.Flags().StringVar(&in.Email, "email", "", "Address that receives messages (required)")
	cmd.Flags().StringVar(&in.Description, "description", "", "Text shown on the profile page")
	cmd.Flags().StringVar(&in.Sticker, "sticker", "", "Sticker sheet layout as ROWSxCOLUMNS, e.g. 2x3")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("email")

	return cmd
}

func runProfileCreate(cmd *cobra.Command, in validate.ProfileInput) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log, os.Stderr)
	profiles, requests := openStores(cfg, logger)

	svc := service.NewProfiles(profiles, requests, validate.New(), nil, logger)
	p, err := svc.CreateProfile(in)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created profile %s\n", p.UUID)
	fmt.Fprintf(cmd.OutOrStdout(), "  url: %s/%s\n", cfg.BaseURL(), p.UUID)
	return nil
}

// ---------- profile list ----------

func newProfileListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfileList(cmd.OutOrStdout(), jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runProfileList(out io.Writer, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	profiles, _ := openStores(cfg, newLogger(cfg.Log, os.Stderr))
	items := profiles.List()

	if jsonOutput {
		return printJSON(out, items)
	}

	if len(items) == 0 {
		fmt.Fprintln(out, "No profiles yet. Approve a request or use 'cryams profile create'.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "UUID\tNAME\tEMAIL\tSTICKER\tCREATED")
	for _, p := range items {
		layout := "-"
		if p.StickerPDF != nil {
			layout = p.StickerPDF.Label
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.UUID, p.Name, p.Email, layout, p.CreatedAt.Format("2006-01-02"))
	}
	return tw.Flush()
}

// ---------- profile delete ----------

func newProfileDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "delete <uuid>",
		Aliases: []string{"rm"},
		Short:   "Delete a profile; its sticker link stops working",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			profiles, _ := openStores(cfg, newLogger(cfg.Log, os.Stderr))
			ok, err := profiles.Delete(args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no profile with uuid %q", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted profile %s\n", args[0])
			return nil
		},
	}
	return cmd
}
