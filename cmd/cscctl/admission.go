package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"cscenter/backend/internal/service"
)

func newAdmissionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admission",
		Short: "招生：成绩导入导出与竞赛注册",
	}
	cmd.AddCommand(newImportScoresCmd(), newExportScoresCmd(), newRegisterApplicantCmd(), newAdmissionStatsCmd())
	return cmd
}

func newImportScoresCmd() *cobra.Command {
	var (
		campaignID int64
		kind       string
		dryRun     bool
	)
	cmd := &cobra.Command{
		Use:   "import-scores FILE",
		Short: "从 csv / xlsx 导入测试、考试或奥赛成绩",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(false, func(cmd *cobra.Command, a *app, args []string) error {
			format, err := service.DetectFormat(args[0], "")
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			result, err := a.svc.Admission.ImportScores(cmd.Context(), campaignID, kind, format, f, dryRun)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "total=%d created=%d updated=%d skipped=%d applied=%t\n",
				result.Total, result.Created, result.Updated, result.Skipped, result.Applied)
			for _, e := range result.Errors {
				fmt.Fprintf(out, "  行 %d: %s\n", e.Row, e.Message)
			}
			if len(result.Errors) > 0 {
				return fmt.Errorf("%d 行存在错误，未写入数据", len(result.Errors))
			}
			return nil
		}),
	}
	cmd.Flags().Int64Var(&campaignID, "campaign", 0, "招生季 ID")
	cmd.Flags().StringVar(&kind, "kind", service.ScoreKindTest, "成绩类型：test | exam | olympiad")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "只校验，不写入")
	_ = cmd.MarkFlagRequired("campaign")
	return cmd
}

func newExportScoresCmd() *cobra.Command {
	var (
		campaignID int64
		kind       string
		format     string
		outDir     string
	)
	cmd := &cobra.Command{
		Use:   "export-scores",
		Short: "导出招生季成绩",
		RunE: withApp(false, func(cmd *cobra.Command, a *app, _ []string) error {
			buf, filename, err := a.svc.Admission.ExportScores(cmd.Context(), campaignID, kind, format)
			if err != nil {
				return err
			}
			return writeOutput(cmd, outDir, filename, buf.Bytes())
		}),
	}
	cmd.Flags().Int64Var(&campaignID, "campaign", 0, "招生季 ID")
	cmd.Flags().StringVar(&kind, "kind", service.ScoreKindTest, "成绩类型：test | exam | olympiad")
	cmd.Flags().StringVar(&format, "format", service.FormatXLSX, "文件格式：xlsx | csv")
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "输出目录，- 表示标准输出")
	_ = cmd.MarkFlagRequired("campaign")
	return cmd
}

func newRegisterApplicantCmd() *cobra.Command {
	var sync bool
	cmd := &cobra.Command{
		Use:   "register-applicant APPLICANT_ID",
		Short: "将申请人注册到测试竞赛",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var applicantID int64
			if _, err := fmt.Sscan(args[0], &applicantID); err != nil {
				return fmt.Errorf("无效的申请人 ID: %s", args[0])
			}
			a, err := newApp(!sync)
			if err != nil {
				return err
			}
			defer a.Close()

			if sync {
				if err := a.svc.Contest.RegisterInContest(cmd.Context(), applicantID); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "已注册")
				return nil
			}
			jobID, err := a.svc.Task.EnqueueContestRegistration(cmd.Context(), applicantID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "已入队 job_id=%s\n", jobID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&sync, "sync", false, "在当前进程内直接执行，不经过队列")
	return cmd
}

func newAdmissionStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats CAMPAIGN_ID",
		Short: "招生统计",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(false, func(cmd *cobra.Command, a *app, args []string) error {
			var campaignID int64
			if _, err := fmt.Sscan(args[0], &campaignID); err != nil {
				return fmt.Errorf("无效的招生季 ID: %s", args[0])
			}
			stats, err := a.svc.Stats.AdmissionStats(cmd.Context(), campaignID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "按状态：")
			for _, s := range stats.ApplicantsByStatus {
				fmt.Fprintf(out, "  %-12s %d\n", s.Status, s.Total)
			}
			fmt.Fprintln(out, "测试成绩：")
			for _, b := range stats.TestScores {
				fmt.Fprintf(out, "  %-40s %6.2f %d\n", b.University, b.Score, b.Total)
			}
			fmt.Fprintln(out, "考试成绩：")
			for _, b := range stats.ExamScores {
				fmt.Fprintf(out, "  %-40s %6.2f %d\n", b.University, b.Score, b.Total)
			}
			return nil
		}),
	}
}

// writeOutput 写入 dir/filename；dir 为 "-" 时写到标准输出
func writeOutput(cmd *cobra.Command, dir, filename string, data []byte) error {
	if dir == "-" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "已写入 %s (%d 字节)\n", path, len(data))
	return nil
}
