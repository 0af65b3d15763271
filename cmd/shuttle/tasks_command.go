package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"shuttle/internal/taskstore"
)

func newTasksCommand(cc *commandContext) *cobra.Command {
	tasksCmd := &cobra.Command{
		Use:   "tasks",
		Short: "Task history utilities",
	}
	tasksCmd.AddCommand(newTasksListCommand(cc))
	tasksCmd.AddCommand(newTasksClearCommand(cc))
	return tasksCmd
}

func newTasksListCommand(cc *commandContext) *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded pipeline runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := cc.openTaskStore()
			if err != nil {
				return err
			}
			defer store.Close()

			var statuses []taskstore.Status
			if trimmed := strings.TrimSpace(statusFilter); trimmed != "" {
				for _, raw := range strings.Split(trimmed, ",") {
					status := taskstore.Status(strings.ToLower(strings.TrimSpace(raw)))
					if !taskstore.ValidStatus(status) {
						return fmt.Errorf("unknown status %q", raw)
					}
					statuses = append(statuses, status)
				}
			}

			tasks, err := store.List(context.Background(), statuses...)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(tasks) == 0 {
				fmt.Fprintln(out, "No tasks recorded")
				return nil
			}

			rows := make([][]string, 0, len(tasks))
			for _, task := range tasks {
				progress := fmt.Sprintf("%d/%d", task.CompletedUnits, task.TotalUnits)
				if task.TotalUnits > 0 {
					progress = fmt.Sprintf("%s (%.0f%%)", progress, task.Percent())
				}
				detail := task.ErrorMessage
				if detail == "" {
					detail = filepath.Base(task.SourcePath)
				}
				rows = append(rows, []string{
					shortID(task.ID),
					string(task.Kind),
					string(task.Status),
					progress,
					task.UpdatedAt.Local().Format(time.DateTime),
					detail,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Kind", "Status", "Progress", "Updated", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Comma-separated status filter (pending, running, completed, failed)")
	return cmd
}

func newTasksClearCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove completed and failed tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := cc.openTaskStore()
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := store.ClearTerminal(context.Background())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d tasks\n", removed)
			return nil
		},
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
