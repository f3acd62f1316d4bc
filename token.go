package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/brideal/dealsync/internal/tokencache"
)

// Token state constants for status reporting.
const (
	tokenStateMissing = "missing"
	tokenStateExpired = "expired"
	tokenStateValid   = "valid"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Inspect and manage the cached OAuth token",
	}

	cmd.AddCommand(newTokenShowCmd())
	cmd.AddCommand(newTokenRefreshCmd())
	cmd.AddCommand(newTokenClearCmd())

	return cmd
}

func newTokenShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the cached token's state and expiry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := buildLogger()
			store := tokencache.New(resolvedCfg.OAuth.TokenCachePath, logger)

			state, expiresAt := tokenState(store)

			if flagJSON {
				out := map[string]any{
					"path":  store.Path(),
					"state": state,
				}
				if !expiresAt.IsZero() {
					out["expires_at"] = expiresAt.Format(time.RFC3339)
				}

				return json.NewEncoder(os.Stdout).Encode(out)
			}

			fmt.Printf("Token cache: %s\n", store.Path())
			fmt.Printf("State:       %s\n", state)
			if !expiresAt.IsZero() {
				fmt.Printf("Expires:     %s\n", expiresAt.Format(time.RFC1123))
			}

			return nil
		},
	}
}

func newTokenRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Force acquisition of a fresh token",
		Long: `Request a new token from the identity provider regardless of what is
cached, and write it to the token cache. Useful when a cached token has been
revoked server-side.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := buildLogger()

			rec, err := newOAuthClient(logger).ForceNew(cmd.Context())
			if err != nil {
				return fmt.Errorf("refreshing token: %w", err)
			}

			expires := time.Unix(int64(rec.ExpiresAt), 0)
			fmt.Printf("New token acquired, expires %s\n", expires.Format(time.RFC1123))

			return nil
		},
	}
}

func newTokenClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the cached token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := buildLogger()
			store := tokencache.New(resolvedCfg.OAuth.TokenCachePath, logger)

			if err := store.Clear(); err != nil {
				return fmt.Errorf("clearing token cache: %w", err)
			}

			fmt.Println("Token cache cleared")

			return nil
		},
	}
}

// tokenState classifies the cached token and returns its expiry when one is
// present.
func tokenState(store *tokencache.Store) (string, time.Time) {
	rec := store.Load()
	if rec == nil {
		return tokenStateMissing, time.Time{}
	}

	expiresAt := time.Unix(int64(rec.ExpiresAt), 0)
	if !store.IsValid(rec) {
		return tokenStateExpired, expiresAt
	}

	return tokenStateValid, expiresAt
}
