package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/deskbook/internal/availability"
	"github.com/example/deskbook/internal/domain/slot"
	"github.com/example/deskbook/internal/infrastructure/config"
	"github.com/example/deskbook/internal/infrastructure/logging"
	"github.com/example/deskbook/internal/infrastructure/spazio"
)

func newAvailabilityCmd() *cobra.Command {
	var spaceID int64
	var date string

	c := &cobra.Command{
		Use:   "availability",
		Short: "Print the slot grid for a space and date",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log, err := logging.New(cfg.Env, cfg.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			day := slot.DayOf(time.Now())
			if date != "" {
				if day, err = slot.ParseDay(date); err != nil {
					return err
				}
			}

			window := slot.Window{Open: cfg.OpenHour, Close: cfg.CloseHour}
			client := spazio.New(cfg.APIBaseURL, window, log)
			store := availability.NewStore(client, log)

			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			g, err := store.Fetch(ctx, spaceID, day)
			if err != nil {
				return err
			}

			fmt.Fprintf(os.Stdout, "space %d, %s\n", g.SpaceID, g.Day)
			for _, s := range g.Slots() {
				fmt.Fprintf(os.Stdout, "  %2d  %s  %s\n", s.ID, s.HourLabel, s.Status)
			}
			return nil
		},
	}

	c.Flags().Int64Var(&spaceID, "space", 1, "space id")
	c.Flags().StringVar(&date, "date", "", "date (YYYY-MM-DD, default today)")
	return c
}
