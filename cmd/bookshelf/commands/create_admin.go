package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"bookshelf/internal/config"
	"bookshelf/internal/util"
)

var (
	adminEmail    string
	adminPassword string
)

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an admin account",
	Long: `Create an admin account in the configured store unless the email is taken.

Examples:
  bookshelf create-admin --email root@example.com --password 's3cret'
  ADMIN_EMAIL=root@example.com ADMIN_PASSWORD=s3cret bookshelf create-admin`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		util.InitLogger(cfg.LogLevel)
		if cfg.StoreDriver == config.DriverMemory {
			return errors.New("create-admin needs a persistent store driver")
		}
		email, password := adminEmail, adminPassword
		if email == "" {
			email, password = cfg.AdminEmail, cfg.AdminPassword
		}
		if email == "" || password == "" {
			return errors.New("--email and --password are required")
		}

		ctx := cmd.Context()
		deps, err := wire(ctx, cfg)
		if err != nil {
			return err
		}
		defer deps.close(ctx)
		return ensureAdmin(ctx, deps.app, email, password)
	},
}

func init() {
	createAdminCmd.Flags().StringVar(&adminEmail, "email", "", "Admin email")
	createAdminCmd.Flags().StringVar(&adminPassword, "password", "", "Admin password")
	rootCmd.AddCommand(createAdminCmd)
}
