package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cryams/cryams/internal/store"
)

func newRequestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "request",
		Aliases: []string{"requests"},
		Short:   "Moderate pending profile requests",
		Long:    "List pending profile requests and approve or reject them.",
	}

	cmd.AddCommand(newRequestListCmd())
	cmd.AddCommand(newRequestApproveCmd())
	cmd.AddCommand(newRequestRejectCmd())

	return cmd
}

// ---------- request list ----------

func newRequestListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List pending requests in submission order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequestList(cmd.OutOrStdout(), jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runRequestList(out io.Writer, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	_, requests := openStores(cfg, newLogger(cfg.Log, os.Stderr))
	items := requests.List()

	if jsonOutput {
		return printJSON(out, items)
	}

	if len(items) == 0 {
		fmt.Fprintln(out, "No pending requests.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "UUID\tNAME\tEMAIL\tSTICKER\tSUBMITTED")
	for _, r := range items {
		layout := "-"
		if r.StickerPDF != nil {
			layout = r.StickerPDF.Label
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.UUID, r.Name, r.Email, layout, r.CreatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

// ---------- request approve ----------

func newRequestApproveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approve <uuid>",
		Short: "Turn a pending request into a public profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			_, requests := openStores(cfg, newLogger(cfg.Log, os.Stderr))

			p, err := requests.Approve(args[0])
			switch {
			case errors.Is(err, store.ErrConflict):
				return fmt.Errorf("a profile with uuid %q already exists; reject the request instead", args[0])
			case err != nil:
				return err
			case p == nil:
				return fmt.Errorf("no pending request with uuid %q", args[0])
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Approved %s (%s)\n", p.UUID, p.Name)
			fmt.Fprintf(cmd.OutOrStdout(), "  url: %s/%s\n", cfg.BaseURL(), p.UUID)
			return nil
		},
	}
	return cmd
}

// ---------- request reject ----------

func newRequestRejectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reject <uuid>",
		Short: "Discard a pending request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			_, requests := openStores(cfg, newLogger(cfg.Log, os.Stderr))

			ok, err := requests.Reject(args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no pending request with uuid %q", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rejected %s\n", args[0])
			return nil
		},
	}
	return cmd
}
