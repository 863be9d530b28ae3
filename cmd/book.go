package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/deskbook/internal/application/usecases"
	"github.com/example/deskbook/internal/auth"
	"github.com/example/deskbook/internal/availability"
	"github.com/example/deskbook/internal/domain/booking"
	"github.com/example/deskbook/internal/domain/slot"
	"github.com/example/deskbook/internal/infrastructure/config"
	"github.com/example/deskbook/internal/infrastructure/logging"
	"github.com/example/deskbook/internal/infrastructure/spazio"
)

func newBookCmd() *cobra.Command {
	var (
		spaceID    int64
		date       string
		fromHour   int
		toHour     int
		preset     string
		token      string
	)

	c := &cobra.Command{
		Use:   "book",
		Short: "Book a range of hours in one shot",
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
			if token == "" {
				token = os.Getenv("DESKBOOK_API_TOKEN")
			}

			window := slot.Window{Open: cfg.OpenHour, Close: cfg.CloseHour}
			client := spazio.New(cfg.APIBaseURL, window, log)
			store := availability.NewStore(client, log)

			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()

			g, err := store.Fetch(ctx, spaceID, day)
			if err != nil {
				return err
			}

			ctrl := slot.NewController()
			ctrl.SetGrid(g)

			if preset != "" {
				if err := ctrl.SelectPreset(preset); err != nil {
					return err
				}
			} else {
				fromID, ok := window.IDForHour(fromHour)
				if !ok {
					return fmt.Errorf("--from %d is outside the %d-%d opening window", fromHour, window.Open, window.Close)
				}
				if err := ctrl.Click(fromID); err != nil {
					return fmt.Errorf("start hour %d: %w", fromHour, err)
				}
				if toHour > fromHour {
					toID, ok := window.IDForHour(toHour)
					if !ok {
						return fmt.Errorf("--to %d is outside the %d-%d opening window", toHour, window.Open, window.Close)
					}
					if err := ctrl.Click(toID); err != nil {
						return fmt.Errorf("end hour %d: %w", toHour, err)
					}
				}
			}
			if len(ctrl.Selected()) == 0 {
				return fmt.Errorf("nothing selectable in the requested range")
			}

			submitter := &usecases.Submitter{
				Availability: store,
				API:          client,
				Log:          log,
				MaxAttempts:  cfg.SubmitMaxAttempts,
				BackoffBase:  cfg.SubmitBackoff(),
			}

			res := submitter.Submit(ctx, auth.APISession{Token: token}, ctrl)
			switch res.State {
			case usecases.StateSucceeded:
				fmt.Fprintf(os.Stdout, "booked: ref=%s\n", res.BookingRef)
				return nil
			case usecases.StateConflictDetected:
				if len(res.ConflictIDs) > 0 {
					fmt.Fprintf(os.Stderr, "slots no longer available: %v\n", res.ConflictIDs)
				}
				return fmt.Errorf("%s", booking.UserMessage(res.Err))
			default:
				return fmt.Errorf("%s", booking.UserMessage(res.Err))
			}
		},
	}

	c.Flags().Int64Var(&spaceID, "space", 1, "space id")
	c.Flags().StringVar(&date, "date", "", "date (YYYY-MM-DD, default today)")
	c.Flags().IntVar(&fromHour, "from", 0, "first hour to book (e.g. 9)")
	c.Flags().IntVar(&toHour, "to", 0, "last hour to book, inclusive (e.g. 11)")
	c.Flags().StringVar(&preset, "preset", "", "preset range: morning, afternoon or full-day")
	c.Flags().StringVar(&token, "token", "", "API bearer token (or DESKBOOK_API_TOKEN)")
	return c
}
