package main

import (
	"github.com/spf13/cobra"

	"gitlab-trace/internal/config"
)

func newConfigCmd(s *session) *cobra.Command {
	command := &cobra.Command{
		Use:   "config",
		Short: "Configure the GitLab project and token",
	}

	set := &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Set a configuration value (url, token, skip_tls_verify, default_classification)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := s.configPath()
			if err != nil {
				return err
			}
			if err := config.SetFileValue(path, args[0], args[1]); err != nil {
				return err
			}

			value := args[1]
			if args[0] == "token" {
				value = maskToken(value)
			}
			writeLine(cmd.OutOrStdout(), "Configuration updated: %s = %s", args[0], value)
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration (hiding the token)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			file, err := s.loadFile()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			writeLine(out, "Project URL: %s", file.URL)
			writeLine(out, "API Token: %s", maskToken(file.Token))
			writeLine(out, "Skip TLS verify: %t", file.SkipTLSVerify)
			writeLine(out, "Default classification: %s", file.Classification)
			return nil
		},
	}

	command.AddCommand(set, show)
	return command
}

func maskToken(token string) string {
	if len(token) > 8 {
		return token[:4] + "..." + token[len(token)-4:]
	}
	if token == "" {
		return ""
	}
	return "***"
}
