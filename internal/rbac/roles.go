package rbac

import "cscenter/backend/internal/model"

// 权限编码
const (
	PermViewGradebook           = "learning.view_gradebook"
	PermEditGradebook           = "learning.edit_gradebook"
	PermEnrollInCourse          = "learning.enroll_in_course"
	PermCreateAssignmentComment = "learning.create_assignment_comment"
	PermViewOwnAssignments      = "learning.view_own_assignments"
	PermImportScores            = "admission.import_scores"
	PermViewAdmissionStats      = "admission.view_stats"
)

// CourseAccess 课程相关权限判断所需的上下文
// TeacherRoles 为当前用户在课程中的职责位掩码；不是课程教师时 IsTeacher=false
type CourseAccess struct {
	CourseID     int64
	IsTeacher    bool
	TeacherRoles int
	IsEnrolled   bool
}

// StudentAssignmentAccess 个人作业相关权限判断所需的上下文
type StudentAssignmentAccess struct {
	StudentID int64
	Course    CourseAccess
}

func isCourseTeacher(_ *Subject, obj interface{}) bool {
	ca, ok := obj.(*CourseAccess)
	return ok && ca.IsTeacher
}

// canEditAsTeacher 仅旁听的教师不能修改成绩
func canEditAsTeacher(_ *Subject, obj interface{}) bool {
	ca, ok := obj.(*CourseAccess)
	if !ok || !ca.IsTeacher {
		return false
	}
	return ca.TeacherRoles != model.TeacherRoleSpectator
}

func isOwnAssignment(s *Subject, obj interface{}) bool {
	sa, ok := obj.(*StudentAssignmentAccess)
	return ok && sa.StudentID == s.UserID && sa.Course.IsEnrolled
}

func isAssignmentTeacher(_ *Subject, obj interface{}) bool {
	sa, ok := obj.(*StudentAssignmentAccess)
	return ok && sa.Course.IsTeacher
}

// NewDefaultRegistry 注册站点内置角色
func NewDefaultRegistry() *Registry {
	reg := NewRegistry()

	student := NewRole(model.RoleStudent, "Студент", 10).
		Add(PermEnrollInCourse, nil).
		Add(PermViewOwnAssignments, nil).
		Add(PermCreateAssignmentComment, isOwnAssignment)

	volunteer := NewRole(model.RoleVolunteer, "Вольнослушатель", 20).
		Add(PermEnrollInCourse, nil).
		Add(PermViewOwnAssignments, nil).
		Add(PermCreateAssignmentComment, isOwnAssignment)

	teacher := NewRole(model.RoleTeacher, "Преподаватель", 30).
		Add(PermViewGradebook, isCourseTeacher).
		Add(PermEditGradebook, canEditAsTeacher).
		Add(PermCreateAssignmentComment, isAssignmentTeacher)

	curator := NewRole(model.RoleCurator, "Куратор", 5).
		Add(PermViewGradebook, nil).
		Add(PermEditGradebook, nil).
		Add(PermCreateAssignmentComment, nil).
		Add(PermImportScores, nil).
		Add(PermViewAdmissionStats, nil)

	graduate := NewRole(model.RoleGraduate, "Выпускник", 40).
		Add(PermViewOwnAssignments, nil)

	invited := NewRole(model.RoleInvited, "Приглашённый студент", 50).
		Add(PermEnrollInCourse, nil).
		Add(PermViewOwnAssignments, nil).
		Add(PermCreateAssignmentComment, isOwnAssignment)

	interviewer := NewRole(model.RoleInterviewer, "Интервьюер", 60).
		Add(PermViewAdmissionStats, nil)

	for _, role := range []*Role{student, volunteer, teacher, curator, graduate, invited, interviewer} {
		// 内置角色编码唯一
		_ = reg.Register(role)
	}
	return reg
}
