package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/ignatij/apipulse/internal/log"
	"github.com/ignatij/apipulse/pkg/models"
	"github.com/ignatij/apipulse/pkg/service"
	"github.com/ignatij/apipulse/pkg/storage"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// StoreOpener opens the store a command runs against. The caller closes it.
type StoreOpener func(cmd *cobra.Command) (storage.Store, error)

// SetupCLI registers the operator commands on rootCmd.
func SetupCLI(rootCmd *cobra.Command, open StoreOpener) {
	tasksCmd := &cobra.Command{
		Use:   "tasks",
		Short: "Manage tasks as a given user",
	}
	tasksCmd.PersistentFlags().String("user", "", "User ID (UUID) to act as")
	_ = tasksCmd.MarkPersistentFlagRequired("user")

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := service.CreateTaskInput{}
			in.TaskName, _ = cmd.Flags().GetString("name")
			in.APIURL, _ = cmd.Flags().GetString("url")
			in.Method, _ = cmd.Flags().GetString("method")
			in.ScheduleInterval, _ = cmd.Flags().GetString("interval")
			return withTaskService(cmd, open, func(svc *service.TaskService, user string) error {
				return createTask(cmd.Context(), cmd.OutOrStdout(), svc, user, in)
			})
		},
	}
	createCmd.Flags().String("name", "", "Task name")
	createCmd.Flags().String("url", "", "URL to call")
	createCmd.Flags().String("method", string(models.GetHTTPMethod), "HTTP method (GET or POST)")
	createCmd.Flags().String("interval", "", "Schedule interval, e.g. 5m, 1h, 1d")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the user's tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTaskService(cmd, open, func(svc *service.TaskService, user string) error {
				return listTasks(cmd.Context(), cmd.OutOrStdout(), svc, user)
			})
		},
	}

	toggleCmd := &cobra.Command{
		Use:   "toggle [id] [true|false]",
		Short: "Activate or pause a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			active, err := strconv.ParseBool(args[1])
			if err != nil {
				return errors.Errorf("is_active must be a boolean, got %q", args[1])
			}
			return withTaskService(cmd, open, func(svc *service.TaskService, user string) error {
				return toggleTask(cmd.Context(), cmd.OutOrStdout(), svc, user, args[0], active)
			})
		},
	}

	logsCmd := &cobra.Command{
		Use:   "logs [id]",
		Short: "Show a task's execution history, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return withTaskService(cmd, open, func(svc *service.TaskService, user string) error {
				return listLogs(cmd.Context(), cmd.OutOrStdout(), svc, user, args[0], limit)
			})
		},
	}
	logsCmd.Flags().Int("limit", service.DefaultLogLimit, "Maximum number of entries")

	tasksCmd.AddCommand(createCmd, listCmd, toggleCmd, logsCmd)

	pruneCmd := &cobra.Command{
		Use:   "prune-logs",
		Short: "Delete execution logs older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			retention, err := retentionFromFlags(cmd)
			if err != nil {
				return err
			}
			store, err := open(cmd)
			if err != nil {
				return errors.Wrap(err, "failed to initialize store")
			}
			defer store.Close()
			svc := service.NewEngineService(store, log.GetLogger())
			return pruneLogs(cmd.Context(), cmd.OutOrStdout(), svc, retention)
		},
	}
	pruneCmd.Flags().String("retention", "", "Retention window, e.g. 24h, 30d, 90d")
	pruneCmd.Flags().String("plan", "", "Use the retention of a plan: free, pro or enterprise")
	pruneCmd.MarkFlagsMutuallyExclusive("retention", "plan")
	pruneCmd.MarkFlagsOneRequired("retention", "plan")

	rootCmd.AddCommand(tasksCmd, pruneCmd)
}

func withTaskService(cmd *cobra.Command, open StoreOpener, fn func(*service.TaskService, string) error) error {
	raw, err := cmd.Flags().GetString("user")
	if err != nil {
		return err
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return errors.Errorf("--user must be a UUID, got %q", raw)
	}
	user := id.String()
	log.GetLogger().Debugf("Running %s as user %s", cmd.CommandPath(), user)
	store, err := open(cmd)
	if err != nil {
		return errors.Wrap(err, "failed to initialize store")
	}
	defer store.Close()
	return fn(service.NewTaskService(store, log.GetLogger()), user)
}

func createTask(ctx context.Context, out io.Writer, svc *service.TaskService, user string, in service.CreateTaskInput) error {
	task, err := svc.CreateTask(ctx, user, in)
	if err != nil {
		return errors.Wrap(err, "failed to create task")
	}
	fmt.Fprintf(out, "Created task '%s' with ID %s\n", task.TaskName, task.ID)
	return nil
}

func listTasks(ctx context.Context, out io.Writer, svc *service.TaskService, user string) error {
	tasks, err := svc.ListTasks(ctx, user)
	if err != nil {
		return errors.Wrap(err, "failed to list tasks")
	}
	if len(tasks) == 0 {
		fmt.Fprintf(out, "No tasks found.\n")
		return nil
	}
	fmt.Fprintf(out, "Tasks:\n")
	for _, t := range tasks {
		fmt.Fprintf(out, "- ID: %s, Name: %s, %s %s every %s, Active: %t, Created: %s\n",
			t.ID, t.TaskName, t.Method, t.APIURL, t.ScheduleInterval, t.IsActive, t.CreatedAt.Format(time.RFC3339))
	}
	return nil
}

func toggleTask(ctx context.Context, out io.Writer, svc *service.TaskService, user, id string, active bool) error {
	task, err := svc.SetTaskActive(ctx, user, id, active)
	if err != nil {
		return errors.Wrap(err, "failed to update task")
	}
	fmt.Fprintf(out, "Set is_active of task %s to %t\n", task.ID, task.IsActive)
	return nil
}

func listLogs(ctx context.Context, out io.Writer, svc *service.TaskService, user, id string, limit int) error {
	logs, err := svc.ListExecutionLogs(ctx, user, id, limit)
	if err != nil {
		return errors.Wrap(err, "failed to list execution logs")
	}
	if len(logs) == 0 {
		fmt.Fprintf(out, "No executions yet.\n")
		return nil
	}
	for _, l := range logs {
		status := "-"
		if l.StatusCode != nil {
			status = strconv.Itoa(*l.StatusCode)
		}
		fmt.Fprintf(out, "%s  status=%s  time=%dms", l.ExecutedAt.Format(time.RFC3339), status, l.ResponseTimeMs)
		if l.ErrorMessage != nil {
			fmt.Fprintf(out, "  error=%q", *l.ErrorMessage)
		}
		fmt.Fprintln(out)
	}
	return nil
}

func pruneLogs(ctx context.Context, out io.Writer, svc *service.EngineService, retention time.Duration) error {
	deleted, err := svc.PruneExecutionLogs(ctx, retention)
	if err != nil {
		return errors.Wrap(err, "failed to prune execution logs")
	}
	fmt.Fprintf(out, "Deleted %d execution logs older than %s\n", deleted, retention)
	return nil
}

func retentionFromFlags(cmd *cobra.Command) (time.Duration, error) {
	if plan, _ := cmd.Flags().GetString("plan"); plan != "" {
		return service.PlanRetention(plan)
	}
	raw, _ := cmd.Flags().GetString("retention")
	return ParseRetention(raw)
}

// ParseRetention accepts the schedule notation (30m, 24h, 30d) or any
// time.ParseDuration string.
func ParseRetention(raw string) (time.Duration, error) {
	if iv, err := models.ParseScheduleInterval(raw); err == nil {
		return iv.Duration(), nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, errors.Errorf("invalid retention %q: use e.g. 24h, 30d or 90d", raw)
	}
	return d, nil
}
