package main

import (
	"github.com/spf13/cobra"

	"github.com/iliyamo/venue-booking/internal/availability"
)

func newEvaluateDayCmd() *cobra.Command {
	var (
		venueID uint64
		date    string
	)
	cmd := &cobra.Command{
		Use:   "evaluate-day",
		Short: "Print the open slots and policy hash of a venue for a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := openCore(cmd.Context())
			if err != nil {
				return err
			}
			defer core.Close()
			plan, err := core.Evaluator.EvaluateDay(cmd.Context(), venueID, date)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), plan)
		},
	}
	cmd.Flags().Uint64Var(&venueID, "venue", 1, "venue id")
	cmd.Flags().StringVar(&date, "date", "", "local date, YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func newAvailabilityCmd() *cobra.Command {
	var req availability.Request
	cmd := &cobra.Command{
		Use:   "availability",
		Short: "Print which tables can take a party at a date and time",
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := openCore(cmd.Context())
			if err != nil {
				return err
			}
			defer core.Close()
			res, err := core.Engine.GetAvailability(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().Uint64Var(&req.VenueID, "venue", 1, "venue id")
	cmd.Flags().StringVar(&req.Date, "date", "", "local date, YYYY-MM-DD")
	cmd.Flags().StringVar(&req.Time, "time", "", "local time, HH:MM")
	cmd.Flags().IntVar(&req.PartySize, "party", 2, "party size")
	cmd.Flags().StringVar(&req.Area, "area", "", "restrict to an area")
	cmd.Flags().Uint64Var(&req.TableID, "table", 0, "restrict to one table")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("time")
	return cmd
}
