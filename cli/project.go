package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gitlab-trace/internal/trace"
)

func newTagsCmd(s *session) *cobra.Command {
	var kind string

	command := &cobra.Command{
		Use:   "tags",
		Short: "List the project labels usable as tags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tracker, _, err := s.tracker(cmd.Context())
			if err != nil {
				return err
			}

			var tags []string
			switch kind {
			case trace.Requirements.Name:
				tags, err = tracker.Requirements.FetchTags(cmd.Context())
			case trace.Reviews.Name:
				tags, err = tracker.Reviews.FetchTags(cmd.Context())
			default:
				return fmt.Errorf("unknown kind %q, use %s or %s", kind, trace.Requirements.Name, trace.Reviews.Name)
			}
			if err != nil {
				return err
			}

			for _, tag := range tags {
				writeLine(cmd.OutOrStdout(), "%s", tag)
			}
			return nil
		},
	}

	command.Flags().StringVar(&kind, "kind", trace.Requirements.Name, "requirements or reviews")
	return command
}

func newTokenURLCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "token-url [project-url]",
		Short: "Print the page where a personal access token can be created",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectURL := ""
			if len(args) == 1 {
				projectURL = args[0]
			} else {
				file, err := s.loadFile()
				if err != nil {
					return err
				}
				projectURL = file.URL
			}

			tokenURL, err := trace.TokenSettingsURL(projectURL)
			if err != nil {
				return err
			}
			writeLine(cmd.OutOrStdout(), "%s", tokenURL)
			return nil
		},
	}
}

func newProjectCmd(s *session) *cobra.Command {
	command := &cobra.Command{
		Use:   "project",
		Short: "Manage GitLab projects",
	}

	var group string
	create := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a project in a group on the configured server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gitlab, _, err := s.gitlab()
			if err != nil {
				return err
			}

			groupID, err := gitlab.GroupID(cmd.Context(), group)
			if err != nil {
				return err
			}
			if groupID == "-1" {
				return fmt.Errorf("group %q not found", group)
			}

			if err := gitlab.CreateProject(cmd.Context(), args[0], groupID); err != nil {
				return err
			}
			writeLine(cmd.OutOrStdout(), "Created project %s in group %s", args[0], group)
			return nil
		},
	}
	create.Flags().StringVar(&group, "group", "", "name or full path of the parent group")
	_ = create.MarkFlagRequired("group")

	command.AddCommand(create)
	return command
}
