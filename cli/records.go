package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"gitlab-trace/internal/service"
	"gitlab-trace/internal/trace"
)

type listOptions struct {
	Tags   []string
	Filter string
	IDs    []string
	JSON   bool
}

// recordCommands describes how one record kind is listed and printed
type recordCommands[T trace.Record] struct {
	kind    trace.Kind[T]
	short   string
	fields  string
	withIDs bool
	manager func(*service.Tracker) *service.Manager[T]
	header  string
	row     func(T) string
}

func newRequirementsCmd(s *session) *cobra.Command {
	return newRecordsCmd(s, recordCommands[trace.Requirement]{
		kind:    trace.Requirements,
		short:   "List, create, edit and remove requirements",
		fields:  "title and description",
		manager: func(t *service.Tracker) *service.Manager[trace.Requirement] { return t.Requirements },
		header:  "ID\tIID\tTITLE\tTAGS",
		row: func(r trace.Requirement) string {
			return fmt.Sprintf("%s\t%d\t%s\t%s", r.ID, r.IssueIID, r.Title, strings.Join(r.Tags, ","))
		},
	})
}

func newReviewsCmd(s *session) *cobra.Command {
	return newRecordsCmd(s, recordCommands[trace.Review]{
		kind:    trace.Reviews,
		short:   "List, create, edit and remove reviews",
		fields:  "title, description and author",
		withIDs: true,
		manager: func(t *service.Tracker) *service.Manager[trace.Review] { return t.Reviews },
		header:  "ID\tIID\tCRITICALITY\tAUTHOR\tTITLE\tTAGS",
		row: func(r trace.Review) string {
			return fmt.Sprintf("%s\t%d\t%s\t%s\t%s\t%s", r.ID, r.IssueIID, r.Criticality(), r.Author, r.Title, strings.Join(r.Tags, ","))
		},
	})
}

func newRecordsCmd[T trace.Record](s *session, rc recordCommands[T]) *cobra.Command {
	command := &cobra.Command{
		Use:   rc.kind.Name,
		Short: rc.short,
	}
	command.AddCommand(newListCmd(s, rc), newCreateCmd(s, rc), newEditCmd(s, rc), newRemoveCmd(s, rc))
	return command
}

func newListCmd[T trace.Record](s *session, rc recordCommands[T]) *cobra.Command {
	opts := listOptions{}

	command := &cobra.Command{
		Use:   "list",
		Short: "List open " + rc.kind.Name,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tracker, _, err := s.tracker(cmd.Context())
			if err != nil {
				return err
			}

			records, err := rc.manager(tracker).FetchAll(cmd.Context())
			if err != nil {
				return err
			}

			records = trace.FilterByTags(records, opts.Tags)
			if records, err = trace.FilterByText(records, opts.Filter); err != nil {
				return err
			}
			records = trace.FilterByIDs(records, opts.IDs)

			if opts.JSON {
				return writeJSON(cmd.OutOrStdout(), records)
			}
			return writeTable(cmd.OutOrStdout(), rc.header, records, rc.row)
		},
	}

	command.Flags().StringSliceVar(&opts.Tags, "tag", nil, "keep records carrying any of these tags")
	command.Flags().StringVar(&opts.Filter, "filter", "", "case-insensitive regular expression over "+rc.fields)
	command.Flags().BoolVar(&opts.JSON, "json", false, "print JSON instead of a table")
	if rc.withIDs {
		command.Flags().StringSliceVar(&opts.IDs, "ids", nil, "keep only these record IDs")
	}
	return command
}

func newCreateCmd[T trace.Record](s *session, rc recordCommands[T]) *cobra.Command {
	draft := service.Draft{}

	command := &cobra.Command{
		Use:   "create",
		Short: "Create a new issue labelled " + rc.kind.Label,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tracker, file, err := s.tracker(cmd.Context())
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("classification") {
				draft.Classification = file.Classification
			}

			record, err := rc.manager(tracker).Create(cmd.Context(), draft)
			if err != nil {
				return err
			}
			writeLine(cmd.OutOrStdout(), "Created %s (issue #%d)", record.RecordID(), record.RecordIID())
			return nil
		},
	}

	command.Flags().StringVar(&draft.ID, "id", "", "canonical ID written to the description")
	command.Flags().StringVar(&draft.Title, "title", "", "issue title")
	command.Flags().StringVar(&draft.Description, "description", "", "issue description")
	command.Flags().StringVar(&draft.Classification, "classification", "", "additional label (default from configuration)")
	_ = command.MarkFlagRequired("id")
	_ = command.MarkFlagRequired("title")
	return command
}

func newEditCmd[T trace.Record](s *session, rc recordCommands[T]) *cobra.Command {
	edit := service.Edit{}

	command := &cobra.Command{
		Use:   "edit [issue-iid]",
		Short: "Change the title, description, assignee or tags of a " + strings.TrimSuffix(rc.kind.Name, "s"),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			iid, err := parseIID(args[0])
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("tag") {
				edit.Tags = nil
			} else if edit.Tags == nil {
				edit.Tags = []string{}
			}

			tracker, _, err := s.tracker(cmd.Context())
			if err != nil {
				return err
			}
			if err := rc.manager(tracker).Edit(cmd.Context(), iid, edit); err != nil {
				return err
			}
			writeLine(cmd.OutOrStdout(), "Updated issue #%d", iid)
			return nil
		},
	}

	command.Flags().StringVar(&edit.ID, "id", "", "canonical ID, required with --description")
	command.Flags().StringVar(&edit.Title, "title", "", "new issue title")
	command.Flags().StringVar(&edit.Description, "description", "", "new issue description")
	command.Flags().StringVar(&edit.Assignee, "assignee", "", "assignee user ID")
	command.Flags().StringSliceVar(&edit.Tags, "tag", nil, "replace the tags (repeatable)")
	return command
}

func newRemoveCmd[T trace.Record](s *session, rc recordCommands[T]) *cobra.Command {
	return &cobra.Command{
		Use:   "remove [issue-iid]",
		Short: "Close the issue behind a " + strings.TrimSuffix(rc.kind.Name, "s"),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			iid, err := parseIID(args[0])
			if err != nil {
				return err
			}

			tracker, _, err := s.tracker(cmd.Context())
			if err != nil {
				return err
			}
			if err := rc.manager(tracker).CloseIssue(cmd.Context(), iid); err != nil {
				return err
			}
			writeLine(cmd.OutOrStdout(), "Closed issue #%d", iid)
			return nil
		},
	}
}

func parseIID(arg string) (int, error) {
	iid, err := strconv.Atoi(arg)
	if err != nil || iid <= 0 {
		return 0, fmt.Errorf("invalid issue iid %q", arg)
	}
	return iid, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeTable[T any](w io.Writer, header string, rows []T, row func(T) string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	writeLine(tw, "%s", header)
	for _, r := range rows {
		writeLine(tw, "%s", row(r))
	}
	return tw.Flush()
}
