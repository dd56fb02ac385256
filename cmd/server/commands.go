package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/kids-checkin/internal/model"
	"github.com/iliyamo/kids-checkin/internal/repository"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create missing tables and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

func newFlagsCmd() *cobra.Command {
	flags := &cobra.Command{Use: "flags", Short: "Irregular attendance flags"}
	flags.AddCommand(&cobra.Command{
		Use:   "recompute",
		Short: "Run the irregular attendance job once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
			defer cancel()
			sum, err := a.flagJob.Run(ctx)
			if err != nil {
				return err
			}
			a.log.Info("flags recomputed", zap.Int("processed", sum.Processed), zap.Int("irregular", sum.Irregular))
			fmt.Fprintf(cmd.OutOrStdout(), "window %s..%s: %d children, %d irregular, %d failed\n",
				sum.WindowStart, sum.WindowEnd, sum.Processed, sum.Irregular, sum.Failed)
			return nil
		},
	})
	return flags
}

func newUserCmd() *cobra.Command {
	user := &cobra.Command{Use: "user", Short: "Manage staff accounts"}

	var email, password, name, role string
	add := &cobra.Command{
		Use:   "add",
		Short: "Create a staff account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			role = strings.ToUpper(role)
			if role != model.RoleAdmin && role != model.RoleVolunteer {
				return fmt.Errorf("role must be %s or %s", model.RoleAdmin, model.RoleVolunteer)
			}
			if len(password) < 8 {
				return errors.New("password must be at least 8 characters")
			}
			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()
			id, err := a.users.Create(cmd.Context(), strings.ToLower(strings.TrimSpace(email)), password, name, role, a.cfg.BcryptCost)
			if errors.Is(err, repository.ErrEmailExists) {
				return fmt.Errorf("a user with email %s already exists", email)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %d (%s)\n", id, role)
			return nil
		},
	}
	add.Flags().StringVar(&email, "email", "", "login email")
	add.Flags().StringVar(&password, "password", "", "initial password")
	add.Flags().StringVar(&name, "name", "", "display name")
	add.Flags().StringVar(&role, "role", model.RoleVolunteer, "ADMIN or VOLUNTEER")
	_ = add.MarkFlagRequired("email")
	_ = add.MarkFlagRequired("password")
	user.AddCommand(add)
	return user
}
