package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/petshop-dev/petshop/internal/cli/client"
	"github.com/petshop-dev/petshop/internal/session"
)

// NewLoginCmd creates the login command
func NewLoginCmd(load Loader) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the pet shop",
		Args:  cobra.NoArgs,
		RunE: withEnv(load, func(cmd *cobra.Command, env *Env, args []string) error {
			return runLogin(cmd, env, email, password)
		}),
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address (or set PETSHOP_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set PETSHOP_PASSWORD, will prompt if not provided)")

	return cmd
}

func runLogin(cmd *cobra.Command, env *Env, email, password string) error {
	// Check for environment variables (useful for CI/CD)
	if email == "" {
		email = os.Getenv("PETSHOP_EMAIL")
	}
	if password == "" {
		password = os.Getenv("PETSHOP_PASSWORD")
	}

	if email == "" {
		return fmt.Errorf("email is required (use --email flag or PETSHOP_EMAIL env var)")
	}

	if password == "" {
		var err error
		password, err = env.Prompts.Password("Password")
		if err != nil {
			return err
		}
	}

	fmt.Fprintf(env.Out, "Logging in to %s...\n", env.Client.BaseURL())

	auth, err := env.Client.Login(cmd.Context(), email, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	return startSession(env, auth, "Login successful!")
}

// startSession records a fresh token. A storage failure still leaves the
// user signed in for this process, so it is a warning.
func startSession(env *Env, auth *client.AuthResponse, message string) error {
	if err := auth.User.Validate(); err != nil {
		return fmt.Errorf("server returned an unexpected user: %w", err)
	}

	if err := env.Session.Login(auth.Token, auth.User); err != nil {
		env.Log.Warn().Err(err).Msg("Session not persisted")
		fmt.Fprintf(env.Err, "⚠ Could not save the session, you will need to log in again next time: %v\n", err)
	}

	fmt.Fprintf(env.Out, "✓ %s\n", message)
	fmt.Fprintf(env.Out, "  User: %s (%s)\n", auth.User.FullName(), auth.User.Email)
	if auth.User.Role != session.RoleUser {
		fmt.Fprintf(env.Out, "  Role: %s\n", auth.User.Role)
	}
	return nil
}

// NewRegisterCmd creates the register command
func NewRegisterCmd(load Loader) *cobra.Command {
	var req client.RegisterRequest

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a customer account and sign in",
		Args:  cobra.NoArgs,
		RunE: withEnv(load, func(cmd *cobra.Command, env *Env, args []string) error {
			return runRegister(cmd, env, req)
		}),
	}

	cmd.Flags().StringVar(&req.FirstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&req.LastName, "last-name", "", "Last name")
	cmd.Flags().StringVar(&req.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&req.Password, "password", "", "Password (will prompt if not provided)")
	_ = cmd.MarkFlagRequired("first-name")
	_ = cmd.MarkFlagRequired("last-name")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func runRegister(cmd *cobra.Command, env *Env, req client.RegisterRequest) error {
	if req.Password == "" {
		password, err := env.Prompts.Password("Password")
		if err != nil {
			return err
		}
		confirm, err := env.Prompts.Password("Confirm password")
		if err != nil {
			return err
		}
		if password != confirm {
			return fmt.Errorf("passwords do not match")
		}
		req.Password = password
	}

	auth, err := env.Client.Register(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}

	return startSession(env, auth, "Account created!")
}

// NewLogoutCmd creates the logout command
func NewLogoutCmd(load Loader) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE: withEnv(load, func(cmd *cobra.Command, env *Env, args []string) error {
			wasAuthenticated := env.Session.IsAuthenticated()
			if err := env.Session.Logout(); err != nil {
				return fmt.Errorf("failed to clear session: %w", err)
			}
			if wasAuthenticated {
				fmt.Fprintln(env.Out, "✓ Logged out")
			} else {
				fmt.Fprintln(env.Out, "Not logged in.")
			}
			return nil
		}),
	}
}

// NewWhoamiCmd creates the whoami command
func NewWhoamiCmd(load Loader) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: withEnv(load, func(cmd *cobra.Command, env *Env, args []string) error {
			return runWhoami(env, time.Now())
		}),
	}
}

func runWhoami(env *Env, now time.Time) error {
	user, err := env.Session.RequireUser()
	if err != nil {
		return err
	}

	t := newTable(env.Out)
	fmt.Fprintf(t, "Name:\t%s\n", user.FullName())
	fmt.Fprintf(t, "Email:\t%s\n", user.Email)
	fmt.Fprintf(t, "Role:\t%s\n", user.Role)
	fmt.Fprintf(t, "Profile:\t%s\n", env.Profile)
	fmt.Fprintf(t, "API:\t%s\n", env.Client.BaseURL())

	claims, err := env.Session.Claims()
	switch {
	case err != nil:
		env.Log.Debug().Err(err).Msg("Token is not a readable JWT")
	case claims.ExpiresAt.IsZero():
	case claims.Expired(now):
		fmt.Fprintf(t, "Token:\texpired %s\n", claims.ExpiresAt.Local().Format(time.RFC1123))
	default:
		fmt.Fprintf(t, "Token:\tvalid until %s\n", claims.ExpiresAt.Local().Format(time.RFC1123))
	}
	return t.Flush()
}

// NewRefreshCmd creates the refresh command, which swaps the saved token
// for a fresh one before it expires
func NewRefreshCmd(load Loader) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Renew the saved session token",
		Args:  cobra.NoArgs,
		RunE: withEnv(load, func(cmd *cobra.Command, env *Env, args []string) error {
			return runRefresh(cmd, env)
		}),
	}
}

func runRefresh(cmd *cobra.Command, env *Env) error {
	user, err := env.Session.RequireUser()
	if err != nil {
		return err
	}

	token, err := env.Client.RefreshToken(cmd.Context())
	if err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}

	if err := env.Session.Login(token, *user); err != nil {
		env.Log.Warn().Err(err).Msg("Refreshed session not persisted")
		fmt.Fprintf(env.Err, "⚠ Could not save the refreshed session: %v\n", err)
	}

	fmt.Fprintln(env.Out, "✓ Session refreshed")
	if claims, err := env.Session.Claims(); err == nil && !claims.ExpiresAt.IsZero() {
		fmt.Fprintf(env.Out, "  Valid until %s\n", claims.ExpiresAt.Local().Format(time.RFC1123))
	}
	return nil
}

// warnUnlessRole prints a hint when the cached role cannot do what the
// command is about to try. The server has the final say.
func warnUnlessRole(env *Env, allowed func(session.Role) bool, what string) {
	user := env.Session.User()
	if user == nil {
		fmt.Fprintf(env.Err, "Hint: you are not logged in; %s requires a staff account.\n", what)
		return
	}
	if !allowed(user.Role) {
		fmt.Fprintf(env.Err, "Hint: your role (%s) is not allowed to %s; the server will likely refuse.\n", user.Role, what)
	}
}
