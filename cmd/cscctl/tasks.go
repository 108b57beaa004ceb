package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"cscenter/backend/internal/service"
)

func newTasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "后台任务",
	}

	var (
		name  string
		limit int
	)
	pending := &cobra.Command{
		Use:   "pending",
		Short: "列出未处理的任务（含超时未完成的）",
		RunE: withApp(false, func(cmd *cobra.Command, a *app, _ []string) error {
			tasks, err := a.svc.Task.ListPending(cmd.Context(), name, limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCREATED\tLOCKED_BY")
			for _, t := range tasks {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", t.ID, t.Name, t.CreatedAt.Format(time.RFC3339), t.LockedBy)
			}
			return tw.Flush()
		}),
	}
	pending.Flags().StringVar(&name, "name", "", "任务名过滤，如 "+service.JobImportTestingResults)
	pending.Flags().IntVar(&limit, "limit", 50, "最多显示条数")

	schedule := &cobra.Command{
		Use:   "schedule-import",
		Short: "创建榜单导入任务并入队",
		RunE: withApp(true, func(cmd *cobra.Command, a *app, _ []string) error {
			task, err := a.svc.Task.ScheduleImport(cmd.Context())
			if err != nil {
				if task != nil {
					return fmt.Errorf("任务 %d 已写入但入队失败: %w", task.ID, err)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "已入队 task_id=%d\n", task.ID)
			return nil
		}),
	}

	var taskID int64
	runImport := &cobra.Command{
		Use:   "run-import",
		Short: "在当前进程内执行榜单导入",
		RunE: withApp(false, func(cmd *cobra.Command, a *app, _ []string) error {
			if err := a.svc.Contest.ImportTestingResults(cmd.Context(), taskID); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "导入完成")
			return nil
		}),
	}
	runImport.Flags().Int64Var(&taskID, "task-id", 0, "关联的未加锁任务 ID；重跑超时任务时用 0")

	cmd.AddCommand(pending, schedule, runImport)
	return cmd
}
