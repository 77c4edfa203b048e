package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/finey-app/finey/internal/auth"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store credentials for the daemon API",
	Long: `Exchanges a Firebase refresh token for an ID token and stores the refresh
token for later commands. The token may also be passed via FINEY_REFRESH_TOKEN.`,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget stored credentials and wipe the local task cache",
	RunE:  runLogout,
}

var refreshToken string

func init() {
	loginCmd.Flags().StringVar(&refreshToken, "refresh-token", "", "Firebase refresh token")
}

func runLogin(cmd *cobra.Command, args []string) error {
	token := strings.TrimSpace(refreshToken)
	if token == "" {
		token = strings.TrimSpace(os.Getenv("FINEY_REFRESH_TOKEN"))
	}
	if token == "" {
		return fmt.Errorf("--refresh-token or FINEY_REFRESH_TOKEN is required")
	}
	if cfg.Firebase.APIKey == "" {
		return fmt.Errorf("firebase.api_key is not configured")
	}

	m, err := auth.NewManager("", cfg.Firebase.APIKey)
	if err != nil {
		return err
	}
	sess, err := m.Login(context.Background(), token)
	if err != nil {
		return err
	}

	fmt.Printf("Logged in as %s\n", sess.UserID)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	m, err := auth.NewManager("", cfg.Firebase.APIKey)
	if err != nil {
		return err
	}

	// The reset needs a session, so it runs before the credentials go.
	if m.IsAuthenticated() {
		if _, err := apiPost("/session/reset", nil); err != nil {
			fmt.Fprintf(os.Stderr, "warning: local cache not reset: %v\n", err)
		}
	}

	if err := m.Logout(); err != nil {
		return err
	}
	fmt.Println("Logged out")
	return nil
}
