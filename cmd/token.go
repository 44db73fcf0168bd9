package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spendwise/spendwise/internal/auth"
	"github.com/spendwise/spendwise/internal/utils"
	"github.com/spf13/cobra"
)

var (
	flagTokenUser string
	flagTokenTTL  time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print a bearer token for a user uid, signed with auth.jwtSecret",
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagTokenUser == "" {
			return errors.New("--user is required")
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		token, err := auth.NewTokenValidator(cfg.Auth.JwtSecret, utils.SystemClock{}).Issue(flagTokenUser, flagTokenTTL)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
		return err
	},
}

func init() {
	tokenCmd.Flags().StringVarP(&flagTokenUser, "user", "u", "", "User uid placed in the token subject")
	tokenCmd.Flags().DurationVar(&flagTokenTTL, "ttl", 24*time.Hour, "Token lifetime")
	rootCmd.AddCommand(tokenCmd)
}
