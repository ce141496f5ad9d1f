package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"quiz-session-service/internal/auth"
	"quiz-session-service/internal/config"
)

// NewTokenCmd prints a bearer token for a user, for local testing against the API.
func NewTokenCmd(configPath *string) *cobra.Command {
	var userID int64
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a bearer token for a user id",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			tokens, err := auth.NewTokens(cfg.Auth.JWTSecret, config.TTLDuration(cfg.Auth.TokenTTL, 0))
			if err != nil {
				return err
			}
			token, err := tokens.Issue(userID)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "user id to put in the token")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
