package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/iliyamo/venue-booking/internal/utils"
)

func newTokenCmd() *cobra.Command {
	var (
		req    utils.TokenRequest
		secret string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a STAFF or GUEST bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				_ = godotenv.Load()
				secret = os.Getenv("JWT_SECRET")
			}
			if secret == "" {
				return errors.New("JWT_SECRET is not set; pass --secret")
			}
			req.Role = strings.ToUpper(req.Role)
			tok, err := utils.NewAccessToken(secret, req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), tok)
		},
	}
	cmd.Flags().StringVar(&req.Role, "role", utils.RoleStaff, "STAFF or GUEST")
	cmd.Flags().Uint64Var(&req.VenueID, "venue", 0, "venue id the token is scoped to")
	cmd.Flags().Uint64Var(&req.ReservationID, "reservation", 0, "reservation id (GUEST only)")
	cmd.Flags().StringVar(&req.Subject, "subject", "", "token subject")
	cmd.Flags().DurationVar(&req.TTL, "ttl", time.Hour, "token lifetime")
	cmd.Flags().StringVar(&secret, "secret", "", "signing secret (defaults to JWT_SECRET)")
	_ = cmd.MarkFlagRequired("venue")
	return cmd
}

func newKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "Generate a CONTACT_KEY value (hex, 32 bytes)",
		RunE: func(cmd *cobra.Command, args []string) error {
			key := make([]byte, 32)
			if _, err := rand.Read(key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "export CONTACT_KEY=%s\n", hex.EncodeToString(key))
			return nil
		},
	}
}
