package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lawfirm/booking/internal/domain/consultation"
	"github.com/lawfirm/booking/internal/domain/scheduling"
)

func lawyerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lawyer",
		Short: "Manage lawyers",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Register a lawyer whose calendar can be booked",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			email, _ := cmd.Flags().GetString("email")
			maxWeeks, _ := cmd.Flags().GetInt("max-weeks")
			if name == "" || email == "" {
				return fmt.Errorf("--name and --email are required")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := context.Background()
			pool, err := openPool(ctx, cfg, "booking-cli")
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := scheduling.NewService(scheduling.NewLawyerRepoPG(pool), scheduling.NewRuleRepoPG(pool),
				consultation.NewRepoPG(pool), scheduling.Settings{
					Location:     cfg.Location(),
					DefaultWeeks: cfg.DefaultBookingWeeks,
					MaxWeeks:     cfg.MaxBookingWeeks,
				})
			l := &scheduling.Lawyer{FullName: name, Email: email, MaxBookingWeeks: maxWeeks}
			if err := svc.CreateLawyer(ctx, l); err != nil {
				return err
			}
			fmt.Printf("Created lawyer %s (%s)\n", l.ID, l.FullName)
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Full name")
	createCmd.Flags().String("email", "", "Contact email")
	createCmd.Flags().Int("max-weeks", 0, "Booking horizon in weeks (0 = MAX_BOOKING_WEEKS)")

	cmd.AddCommand(createCmd)
	return cmd
}
