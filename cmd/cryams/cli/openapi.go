package cli

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"github.com/cryams/cryams/internal/openapi"
)

func newOpenAPICmd() *cobra.Command {
	var outputFile string

	cmd := &cobra.Command{
		Use:   "openapi",
		Short: "Generate the OpenAPI specification of the JSON API",
		Long: `Generate the OpenAPI 3.1 document describing /api/v1. The server URL is
taken from server.base_url.`,
		Example: `  cryams openapi                  # print to stdout
  cryams openapi -o openapi.json  # write to file`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			doc := openapi.Generate(cfg.BaseURL(), versionString())
			jsonBytes, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal spec: %w", err)
			}
			jsonBytes = append(jsonBytes, '\n')

			if outputFile == "" {
				_, err = cmd.OutOrStdout().Write(jsonBytes)
				return err
			}
			if err := atomic.WriteFile(outputFile, bytes.NewReader(jsonBytes)); err != nil {
				return fmt.Errorf("failed to write %s: %w", outputFile, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", outputFile)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write spec to file instead of stdout")

	return cmd
}
