package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	sourcewatch "github.com/webeye/sourcewatch"
	"github.com/webeye/sourcewatch/auth"
)

func newLoginCmd(opts *rootOptions) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the access token",
		Args:  cobra.NoArgs,
		RunE: opts.run(func(e *env, args []string) error {
			if email == "" || password == "" {
				return errors.New("--email and --password are required")
			}
			if _, err := e.service.Login(context.Background(), email, password); err != nil {
				return err
			}
			fmt.Fprintf(e.out, "logged in as %s (token saved to %s)\n", email, e.store.Path())
			return nil
		}),
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	return cmd
}

func newLogoutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored access token",
		Args:  cobra.NoArgs,
		RunE: opts.run(func(e *env, args []string) error {
			if err := e.service.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(e.out, "logged out")
			return nil
		}),
	}
}

func newWhoamiCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Args:  cobra.NoArgs,
		RunE: opts.run(func(e *env, args []string) error {
			tok, err := e.store.Load()
			if err != nil {
				return err
			}
			if tok == nil {
				return sourcewatch.ErrNotLoggedIn
			}
			if claims, err := auth.ParseClaims(tok.AccessToken); err == nil && claims.Expired(time.Now()) {
				return fmt.Errorf("token expired at %s, log in again", claims.ExpiresAt.Time.Format(time.RFC3339))
			}
			u, err := e.service.Me(context.Background())
			if err != nil {
				return err
			}
			return e.printJSON(struct {
				*sourcewatch.User
				TokenExpiry *time.Time `json:"token_expiry,omitempty"`
			}{u, expiryOf(tok.Expiry)})
		}),
	}
}

func expiryOf(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func newRegisterCmd(opts *rootOptions) *cobra.Command {
	var reg sourcewatch.UserRegistration
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: opts.run(func(e *env, args []string) error {
			if reg.Email == "" || reg.Password == "" {
				return errors.New("--email and --password are required")
			}
			u, err := e.service.Register(context.Background(), reg)
			if err != nil {
				return err
			}
			return e.printJSON(u)
		}),
	}
	cmd.Flags().StringVar(&reg.Email, "email", "", "account email")
	cmd.Flags().StringVar(&reg.Password, "password", "", "account password")
	cmd.Flags().StringVar(&reg.Username, "username", "", "display name")
	return cmd
}

func newBotTokenCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "bot-token",
		Short: "Generate a code that links the Telegram bot to this account",
		Args:  cobra.NoArgs,
		RunE: opts.run(func(e *env, args []string) error {
			t, err := e.service.BotToken(context.Background())
			if err != nil {
				return err
			}
			fmt.Fprintln(e.out, t.Token)
			return nil
		}),
	}
}
