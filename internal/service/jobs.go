package service

import "context"

// 后台任务名
const (
	JobRegisterInContest            = "register_in_contest"
	JobImportTestingResults         = "import_testing_results"
	JobUpdateStudentAssignmentStats = "update_student_assignment_stats"
)

// JobQueue 后台任务入队
type JobQueue interface {
	Enqueue(ctx context.Context, queue, name string, args interface{}) (string, error)
}

// RegisterInContestArgs register_in_contest 参数
type RegisterInContestArgs struct {
	ApplicantID int64 `json:"applicant_id"`
}

// ImportTestingResultsArgs import_testing_results 参数
type ImportTestingResultsArgs struct {
	TaskID int64 `json:"task_id"`
}

// StudentAssignmentStatsArgs update_student_assignment_stats 参数
type StudentAssignmentStatsArgs struct {
	StudentAssignmentID int64 `json:"student_assignment_id"`
}
