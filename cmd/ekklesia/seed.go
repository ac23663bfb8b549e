package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alecgard/ekklesia/internal/account"
	"github.com/alecgard/ekklesia/internal/auth"
	"github.com/alecgard/ekklesia/internal/config"
	"github.com/alecgard/ekklesia/internal/role"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

var (
	seedName     string
	seedEmail    string
	seedPassword string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the first admin account on an empty database",
	RunE:  runSeed,
}

func init() {
	seedCmd.Flags().StringVar(&seedName, "name", "Administrador", "admin display name")
	seedCmd.Flags().StringVar(&seedEmail, "email", "admin@ekklesia.local", "admin email")
	seedCmd.Flags().StringVar(&seedPassword, "password", "", "admin password (generated when empty)")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	accounts := account.NewStore(pool)
	n, err := accounts.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		slog.Info("accounts already exist, skipping seed", "count", n)
		return nil
	}

	password := seedPassword
	generated := password == ""
	if generated {
		password = uuid.NewString()
	}

	// Seeding never issues tokens, so the issuer secret is irrelevant here.
	svc := auth.NewService(accounts, auth.NewIssuer("seed", cfg.Auth.TokenTTL, cfg.Auth.Issuer), cfg.Auth.BcryptCost)
	a, err := svc.Register(ctx, auth.RegisterInput{
		Name:     seedName,
		Email:    seedEmail,
		Role:     role.Admin.String(),
		Password: password,
	})
	if err != nil {
		return fmt.Errorf("creating admin account: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Admin account created: %s (%s)\n", a.Email, a.ID)
	if generated {
		fmt.Fprintf(out, "Generated password: %s\n", password)
	}
	return nil
}
