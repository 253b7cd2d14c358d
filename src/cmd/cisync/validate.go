package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"cisync/src/provider"
)

// validateTokenCmd checks provider credentials
var validateTokenCmd = &cobra.Command{
	Use:   "validate-token [provider]",
	Short: "Check that provider API tokens are accepted",
	Long: `Calls each provider with its configured token. Without an argument,
checks every provider that has a token configured.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()

		names := args
		if len(names) == 0 {
			for _, name := range provider.Registered() {
				if a.cfg.TokenFor(name) != "" {
					names = append(names, name)
				}
			}
			sort.Strings(names)
		}
		if len(names) == 0 {
			return fmt.Errorf("no provider tokens configured")
		}

		failed := 0
		for _, name := range names {
			client, err := a.pipeline.Client(name)
			if err == nil {
				err = client.ValidateToken(ctx)
			}
			if err != nil {
				failed++
				fmt.Printf("✗ %s: %v\n", name, provider.WrapError(err))
				continue
			}
			fmt.Printf("✓ %s: token accepted\n", name)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d tokens rejected", failed, len(names))
		}
		return nil
	},
}
