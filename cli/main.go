package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"gitlab-trace/internal/client"
	"gitlab-trace/internal/config"
	"gitlab-trace/internal/service"
)

const defaultTimeoutSeconds = 30

type rootOptions struct {
	ConfigPath string
	Debug      bool
}

type cliDeps struct {
	defaultConfigPath func() (string, error)
	newClient         func(cfg *config.Config) *client.GitLabClient
}

func defaultDeps() cliDeps {
	return cliDeps{
		defaultConfigPath: config.DefaultFilePath,
		newClient:         client.NewGitLabClient,
	}
}

func main() {
	if err := newRootCmd(defaultDeps()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(deps cliDeps) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "gitlab-trace-cli",
		Short:         "Manage requirements and reviews stored as GitLab issues",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := slog.LevelWarn
			if opts.Debug {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		},
	}
	root.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "configuration file (default ~/"+config.FileName+")")
	root.PersistentFlags().BoolVar(&opts.Debug, "debug", false, "log every request to stderr")

	s := &session{opts: opts, deps: deps}
	root.AddCommand(
		newConfigCmd(s),
		newRequirementsCmd(s),
		newReviewsCmd(s),
		newTagsCmd(s),
		newTokenURLCmd(s),
		newProjectCmd(s),
	)
	return root
}

// session lazily loads configuration and connects to GitLab for one command
type session struct {
	opts *rootOptions
	deps cliDeps
}

func (s *session) configPath() (string, error) {
	if s.opts.ConfigPath != "" {
		return s.opts.ConfigPath, nil
	}
	return s.deps.defaultConfigPath()
}

func (s *session) loadFile() (config.FileConfig, error) {
	path, err := s.configPath()
	if err != nil {
		return config.FileConfig{}, err
	}
	return config.LoadFile(path)
}

// configured loads the file and returns the client configuration derived from it
func (s *session) configured() (*config.Config, config.FileConfig, error) {
	file, err := s.loadFile()
	if err != nil {
		return nil, file, err
	}
	if file.URL == "" || file.Token == "" {
		return nil, file, fmt.Errorf("url and token must be configured, run 'gitlab-trace-cli config set url|token <value>'")
	}

	cfg := &config.Config{GitLabTimeoutSeconds: defaultTimeoutSeconds}
	cfg.MergeFile(file)
	return cfg, file, nil
}

func (s *session) gitlab() (*client.GitLabClient, config.FileConfig, error) {
	cfg, file, err := s.configured()
	if err != nil {
		return nil, file, err
	}
	return s.deps.newClient(cfg), file, nil
}

// tracker returns a tracker whose managers are bound to the configured project
func (s *session) tracker(ctx context.Context) (*service.Tracker, config.FileConfig, error) {
	cfg, file, err := s.configured()
	if err != nil {
		return nil, file, err
	}

	tracker := service.NewTracker(
		service.NewRequirementsManager(s.deps.newClient(cfg), nil),
		service.NewReviewsManager(s.deps.newClient(cfg), nil),
		nil,
	)

	resolved, err := tracker.SetCredentials(ctx, file.URL, file.Token)
	if err != nil {
		return nil, file, fmt.Errorf("error connecting to %s: %w", file.URL, err)
	}
	if !resolved {
		return nil, file, fmt.Errorf("no project found at %s", file.URL)
	}
	return tracker, file, nil
}

func writeLine(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format+"\n", args...)
}
