package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/venue-booking/internal/app"
	"github.com/iliyamo/venue-booking/internal/config"
	"github.com/iliyamo/venue-booking/internal/database"
	"github.com/iliyamo/venue-booking/internal/repository"
	"github.com/iliyamo/venue-booking/internal/repository/memory"
	"github.com/iliyamo/venue-booking/internal/utils"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the MySQL schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := config.LoadDatabase()
			if err != nil {
				return err
			}
			db, err := database.Open(opts)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := database.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

func newSeedCmd() *cobra.Command {
	var contactKey string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert the demo venue and its tables into MySQL",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			opts, err := config.LoadDatabase()
			if err != nil {
				return err
			}
			db, err := database.Open(opts)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := database.Migrate(ctx, db); err != nil {
				return err
			}
			if contactKey == "" {
				contactKey = os.Getenv("CONTACT_KEY")
			}
			var codec repository.ContactCodec
			if contactKey != "" {
				if codec, err = utils.NewSealer(contactKey); err != nil {
					return err
				}
			}
			venue := memory.DemoVenue()
			if err := repository.NewMySQLStore(db, codec).SeedVenue(ctx, &venue, memory.DemoTables()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded venue %d (%s)\n", venue.Venue.ID, venue.Venue.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&contactKey, "contact-key", "", "hex key sealing guest contact fields (defaults to CONTACT_KEY)")
	return cmd
}

// openCore wires the core for read-only commands.  Logging goes to a
// no-op logger so command output stays machine readable.
func openCore(ctx context.Context) (*app.Core, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return app.NewCore(ctx, cfg, zap.NewNop())
}
