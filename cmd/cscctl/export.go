package main

import (
	"github.com/spf13/cobra"
)

func newExportCmd() *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "导出 Excel 报表",
	}
	cmd.PersistentFlags().StringVarP(&outDir, "out", "o", ".", "输出目录，- 表示标准输出")

	students := &cobra.Command{
		Use:   "students",
		Short: "在读学生及其选课记录",
		RunE: withApp(false, func(cmd *cobra.Command, a *app, _ []string) error {
			buf, filename, err := a.svc.Export.ExportStudents(cmd.Context())
			if err != nil {
				return err
			}
			return writeOutput(cmd, outDir, filename, buf.Bytes())
		}),
	}

	var courseID int64
	gradebook := &cobra.Command{
		Use:   "gradebook",
		Short: "课程成绩单",
		RunE: withApp(false, func(cmd *cobra.Command, a *app, _ []string) error {
			buf, filename, err := a.svc.Gradebook.Export(cmd.Context(), courseID)
			if err != nil {
				return err
			}
			return writeOutput(cmd, outDir, filename, buf.Bytes())
		}),
	}
	gradebook.Flags().Int64Var(&courseID, "course", 0, "课程 ID")
	_ = gradebook.MarkFlagRequired("course")

	cmd.AddCommand(students, gradebook)
	return cmd
}
