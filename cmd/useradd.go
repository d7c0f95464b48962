package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ivanov-nikolay/notes_storage/internal/auth"
	"github.com/ivanov-nikolay/notes_storage/internal/config"
	"github.com/ivanov-nikolay/notes_storage/internal/logging"
)

func newUserAddCmd() *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "useradd",
		Short: "Создать пользователя",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cfg.Storage.Backend == "memory" {
				return fmt.Errorf("useradd requires a persistent backend, got %q", cfg.Storage.Backend)
			}
			if err := logging.Init(logging.Config{Level: cfg.Log.Level, Format: "console"}); err != nil {
				return err
			}
			defer logging.Sync()

			be, err := openBackend(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer be.close()

			a := auth.New(be.users, be.sessions, cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)
			if err := a.Signup(cmd.Context(), username, password); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "user %s created\n", username)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "имя пользователя")
	cmd.Flags().StringVarP(&password, "password", "p", "", "пароль")
	cmd.MarkFlagRequired("username")
	cmd.MarkFlagRequired("password")

	return cmd
}
