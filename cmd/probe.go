package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Fennzo/CourtScrapper/internal/probe"
)

// newProbeCmd creates the 'probe' subcommand, a quick reachability check
// that does not start any browser.
func newProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Checks that the court portal is reachable",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfigAndLogger()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck // best-effort flush

			prober := probe.New(probe.Config{UserAgent: cfg.Browser.UserAgent}, logger)
			result, err := prober.Check(cmd.Context(), cfg.Portal.BaseURL)
			if err != nil {
				return fmt.Errorf("probe: %w", err)
			}
			fmt.Printf("status=%d title=%q captcha=%t\n", result.StatusCode, result.Title, result.HasCaptcha)
			return nil
		},
	}
}
