package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/BuzzLyutic/smart-todo/internal/client"
	"github.com/BuzzLyutic/smart-todo/internal/model"
	"github.com/BuzzLyutic/smart-todo/internal/prioritize"
	"github.com/BuzzLyutic/smart-todo/internal/reorder"
)

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show your todos in display order",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			todos, err := a.client.List(cmd.Context())
			if err != nil {
				return err
			}
			printTodos(cmd.OutOrStdout(), todos)
			return nil
		},
	}
}

func (a *app) addCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <text>",
		Short: "Add a todo to the end of the list",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			todo, err := a.client.Add(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				if client.IsStatus(err, http.StatusTooManyRequests) {
					return fmt.Errorf("%w (run with --user to log in)", err)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task added successfully (#%d)\n", todo.ID)
			return nil
		},
	}
}

func (a *app) doneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "done <id>",
		Short: "Toggle a todo between completed and open",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			todo, err := a.client.Toggle(cmd.Context(), id)
			if err != nil {
				return err
			}
			if todo.Completed {
				fmt.Fprintln(cmd.OutOrStdout(), "Task completed!")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Task marked as incomplete")
			}
			return nil
		},
	}
}

func (a *app) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a todo",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.client.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Task deleted")
			return nil
		},
	}
}

func (a *app) moveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move <from> <to>",
		Short: "Move the todo at one position to another (positions start at 1)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parsePosition(args[0])
			if err != nil {
				return err
			}
			to, err := parsePosition(args[1])
			if err != nil {
				return err
			}

			coord, err := a.coordinator(cmd)
			if err != nil {
				return err
			}
			if err := coord.BeginReorder(cmd.Context(), from, to); err != nil {
				return err
			}
			printTodos(cmd.OutOrStdout(), coord.View())
			return nil
		},
	}
}

func (a *app) prioritizeCmd() *cobra.Command {
	var apply bool

	cmd := &cobra.Command{
		Use:   "prioritize",
		Short: "Ask the AI assistant to rank your todos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			coord, err := a.coordinator(cmd)
			if err != nil {
				return err
			}
			current := coord.View()
			if len(current) == 0 {
				return errors.New("no todos to prioritize")
			}

			texts := make([]string, len(current))
			for i, t := range current {
				texts[i] = t.Text
			}
			result, err := a.client.Prioritize(cmd.Context(), texts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, strings.TrimSpace(result.Text))
			if !apply {
				return nil
			}

			if err := coord.Apply(cmd.Context(), prioritize.MatchOrder(result.Text, current)); err != nil {
				return err
			}
			fmt.Fprintln(out)
			printTodos(out, coord.View())
			return nil
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "reorder the list to match the AI ranking")
	return cmd
}

func (a *app) suggestCmd() *cobra.Command {
	var async bool

	cmd := &cobra.Command{
		Use:   "suggest <id>",
		Short: "Break a todo down into AI-generated subtasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			if async {
				job, err := a.client.QueueSuggestions(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Suggestions queued (job %s)\n", job.ID)
				return nil
			}

			todo, err := a.client.GenerateSuggestions(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "AI suggestions generated!")
			for _, s := range todo.Suggestions {
				fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", s)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&async, "async", false, "let the server generate subtasks in the background")
	return cmd
}

func (a *app) pepTalkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "peptalk <id>",
		Short: "Get some encouragement for a todo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			todo, err := a.find(cmd.Context(), id)
			if err != nil {
				return err
			}
			talk, err := a.client.PepTalk(cmd.Context(), todo.Text)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), talk)
			return nil
		},
	}
}

func (a *app) importImageCmd() *cobra.Command {
	var add bool

	cmd := &cobra.Command{
		Use:   "import-image <file>",
		Short: "Extract todos from a photo or screenshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}

			found, err := a.client.ExtractFromImage(cmd.Context(), args[0], data)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Found %d tasks in your image\n", len(found))
			for _, t := range found {
				fmt.Fprintf(out, "  - %s\n", t)
			}
			if !add || len(found) == 0 {
				return nil
			}

			created, err := a.client.AddMany(cmd.Context(), found)
			if len(created) > 0 {
				fmt.Fprintf(out, "Added %d tasks\n", len(created))
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&add, "add", false, "add the extracted todos to your list")
	return cmd
}

func (a *app) usageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "usage",
		Short: "Show which assistant features you have used",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			usage, err := a.client.FeatureUsage(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(usage) == 0 {
				fmt.Fprintln(out, "No features used yet")
				return nil
			}
			for _, u := range usage {
				fmt.Fprintf(out, "%-20s %s\n", u.Feature, u.UsedAt.Local().Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
}

func (a *app) coordinator(cmd *cobra.Command) (*reorder.Coordinator, error) {
	coord := reorder.NewCoordinator(a.client, reorder.NotifierFunc(func(err error) {
		fmt.Fprintf(cmd.ErrOrStderr(), "Failed to reorder tasks, the list was reloaded: %v\n", err)
	}), a.logger)
	if _, err := coord.Refresh(cmd.Context()); err != nil {
		return nil, err
	}
	return coord, nil
}

func (a *app) find(ctx context.Context, id int64) (model.Todo, error) {
	todos, err := a.client.List(ctx)
	if err != nil {
		return model.Todo{}, err
	}
	for _, t := range todos {
		if t.ID == id {
			return t, nil
		}
	}
	return model.Todo{}, fmt.Errorf("todo #%d not found", id)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid todo id %q", s)
	}
	return id, nil
}

// parsePosition converts a 1-based list position to an index.
func parsePosition(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid position %q, positions start at 1", s)
	}
	return n - 1, nil
}

func printTodos(w io.Writer, todos []model.Todo) {
	if len(todos) == 0 {
		fmt.Fprintln(w, "No todos yet")
		return
	}
	for i, t := range todos {
		mark := " "
		if t.Completed {
			mark = "x"
		}
		fmt.Fprintf(w, "%2d. [%s] %s (#%d)\n", i+1, mark, t.Text, t.ID)
		for _, s := range t.Suggestions {
			fmt.Fprintf(w, "        - %s\n", s)
		}
	}
}
