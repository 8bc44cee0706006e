package cli

import (
	"time"

	"github.com/spf13/cobra"
)

var (
	tokenSubject string
	tokenRoles   []string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token signed with auth.jwt_secret (local testing)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().IssueToken(tokenSubject, tokenRoles, tokenTTL)
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "Principal id")
	tokenCmd.Flags().StringSliceVar(&tokenRoles, "role", nil, "Role to grant (repeatable)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime (defaults to auth.token_ttl)")
}
