package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// expiredPurger is implemented by stores that persist the explanation cache.
type expiredPurger interface {
	DeleteExpiredExplanations(ctx context.Context) (int, error)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the feedback and cache schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("cli"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}
		zap.L().Info("store migrated", zap.String("driver", cfg.Store.Driver))

		if purge, _ := cmd.Flags().GetBool("purge-expired"); purge {
			p, ok := st.(expiredPurger)
			if !ok {
				return eris.Errorf("store driver %s has no persistent cache", cfg.Store.Driver)
			}
			n, err := p.DeleteExpiredExplanations(ctx)
			if err != nil {
				return eris.Wrap(err, "purge expired explanations")
			}
			_, _ = fmt.Fprintf(os.Stdout, "Purged %d expired explanations\n", n)
		}
		return nil
	},
}

func init() {
	migrateCmd.Flags().Bool("purge-expired", false, "delete expired cached explanations")
	rootCmd.AddCommand(migrateCmd)
}
