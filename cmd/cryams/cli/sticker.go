package cli

import (
	"bytes"
	"fmt"
	"os"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"github.com/cryams/cryams/internal/sticker"
)

func newStickerCmd() *cobra.Command {
	var outputFile string

	cmd := &cobra.Command{
		Use:   "sticker <uuid>",
		Short: "Render the printable sticker sheet of a profile",
		Example: `  cryams sticker 0b5e... -o sticker.pdf
  cryams sticker 0b5e... > sticker.pdf`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			profiles, _ := openStores(cfg, newLogger(cfg.Log, os.Stderr))
			p, ok := profiles.Get(args[0])
			if !ok {
				return fmt.Errorf("no profile with uuid %q", args[0])
			}

			var buf bytes.Buffer
			if err := sticker.NewRenderer(cfg.BaseURL()).Render(&buf, p); err != nil {
				return err
			}

			if outputFile == "" {
				_, err = buf.WriteTo(cmd.OutOrStdout())
				return err
			}
			if err := atomic.WriteFile(outputFile, &buf); err != nil {
				return fmt.Errorf("failed to write %s: %w", outputFile, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", outputFile)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write the PDF to a file instead of stdout")

	return cmd
}
