package commands

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/manifoldco/promptui"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/petshop-dev/petshop/internal/cli/client"
	projectconfig "github.com/petshop-dev/petshop/internal/cli/config"
	"github.com/petshop-dev/petshop/internal/cli/profileselect"
	"github.com/petshop-dev/petshop/internal/config"
	"github.com/petshop-dev/petshop/internal/logger"
	"github.com/petshop-dev/petshop/internal/session"
	"github.com/petshop-dev/petshop/internal/storage"
)

const loginHint = "Run 'petshop login' to sign in again."

// Env is everything a command needs, built once per invocation
type Env struct {
	Log     zerolog.Logger
	Session *session.Store
	Client  *client.Client
	Profile string
	Out     io.Writer
	Err     io.Writer
	Prompts Prompts

	closer io.Closer
}

// Prompts are the interactive inputs a command may ask for
type Prompts struct {
	Password func(label string) (string, error)
	Role     func(current session.Role) (session.Role, error)
}

// Close releases the storage backend
func (e *Env) Close() error {
	if e.closer == nil {
		return nil
	}
	return e.closer.Close()
}

// RedirectToLogin implements client.Navigator for a terminal: the session
// is already cleared, so all that is left is telling the user.
func (e *Env) RedirectToLogin(reason string) {
	fmt.Fprintf(e.Err, "%s\n%s\n", reason, loginHint)
}

// Loader builds the Env for a command
type Loader func(cmd *cobra.Command) (*Env, error)

// GlobalFlags are the persistent flags of the root command
type GlobalFlags struct {
	APIURL  string
	Profile string
}

// DefaultLoader resolves configuration, opens storage, rehydrates the
// session and builds the API gateway.
func DefaultLoader(flags *GlobalFlags, version string) Loader {
	return func(cmd *cobra.Command) (*Env, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}

		log := logger.InitWithWriter(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)

		apiURL, profile, err := resolveTarget(cfg, flags, cmd.ErrOrStderr())
		if err != nil {
			return nil, err
		}

		store, err := storage.Open(storage.Options{
			Kind:    storage.Kind(cfg.Storage.Kind),
			Dir:     cfg.Storage.Dir,
			Profile: profile,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open session storage: %w", err)
		}

		sess := session.New(store, log)
		if err := sess.Rehydrate(); err != nil {
			log.Warn().Err(err).Msg("Failed to restore session, continuing logged out")
		}

		env := &Env{
			Log:     log,
			Session: sess,
			Profile: profile,
			Out:     cmd.OutOrStdout(),
			Err:     cmd.ErrOrStderr(),
			Prompts: terminalPrompts(cmd.ErrOrStderr()),
		}
		if c, ok := store.(io.Closer); ok {
			env.closer = c
		}

		env.Client, err = client.New(apiURL, sess,
			client.WithHTTPClient(&http.Client{Timeout: cfg.API.Timeout}),
			client.WithNavigator(env),
			client.WithLogger(log),
			client.WithRateLimitDelay(cfg.API.RateLimitDelay),
			client.WithUserAgent("petshop-cli/"+version),
		)
		if err != nil {
			env.Close()
			return nil, err
		}

		log.Debug().Str("api_url", apiURL).Str("profile", profile).Str("storage", cfg.Storage.Kind).Msg("Environment ready")
		return env, nil
	}
}

// resolveTarget picks the API URL and the session profile. An explicit URL
// (flag or PETSHOP_API_URL) wins over petshop.yaml, which wins over the
// built-in default.
func resolveTarget(cfg *config.Config, flags *GlobalFlags, warn io.Writer) (string, string, error) {
	profile := flags.Profile
	if profile == "" {
		profile = cfg.Storage.Profile
	}

	apiURL := flags.APIURL
	if apiURL == "" {
		apiURL = cfg.API.BaseURL
	}
	if apiURL != "" {
		return apiURL, orDefault(profile), nil
	}

	projectCfg, err := projectconfig.LoadFromCurrentDir()
	if err != nil {
		// No project file is fine, anything else is not
		if _, findErr := projectconfig.FindConfigFile(); findErr != nil {
			return config.DefaultBaseURL, orDefault(profile), nil
		}
		return "", "", err
	}
	if len(projectCfg.Profiles) == 0 {
		return config.DefaultBaseURL, orDefault(profile), nil
	}

	resolver := profileselect.Resolver{
		StateDir: cfg.Storage.Dir,
		Prompt:   interactiveProfilePrompt,
		Warn:     warn,
	}
	selected, err := resolver.ResolveProfile(projectCfg, profile)
	if err != nil {
		return "", "", err
	}
	return selected.APIURL, selected.Name, nil
}

func orDefault(profile string) string {
	if profile == "" {
		return "default"
	}
	return profile
}

func interactiveProfilePrompt(cfg *projectconfig.Config) (*projectconfig.Profile, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, fmt.Errorf("several profiles are configured in %s; pass --profile or run 'petshop use <profile>'", projectconfig.ConfigFileName)
	}
	return profileselect.PromptProfileSelection(cfg)
}

func terminalPrompts(w io.Writer) Prompts {
	return Prompts{
		Password: func(label string) (string, error) {
			if !term.IsTerminal(int(os.Stdin.Fd())) {
				return "", errors.New("password is required in non-interactive mode (use --password flag or PETSHOP_PASSWORD env var)")
			}
			fmt.Fprintf(w, "%s: ", label)
			bytePassword, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Fprintln(w)
			if err != nil {
				return "", fmt.Errorf("failed to read password: %w", err)
			}
			return string(bytePassword), nil
		},
		Role: promptRole,
	}
}

func promptRole(current session.Role) (session.Role, error) {
	roles := []session.Role{session.RoleUser, session.RoleManager, session.RoleAdmin}

	cursor := 0
	for i, r := range roles {
		if r == current {
			cursor = i
		}
	}

	prompt := promptui.Select{
		Label:     "Select a role",
		Items:     roles,
		CursorPos: cursor,
	}

	index, _, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("role selection cancelled: %w", err)
	}
	return roles[index], nil
}

// withEnv adapts a run function into a cobra RunE that loads and closes
// the Env around it
func withEnv(load Loader, run func(cmd *cobra.Command, env *Env, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		env, err := load(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		return run(cmd, env, args)
	}
}
