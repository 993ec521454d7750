package chat

import "github.com/thereayou/coursechat/internal/models"

// Policy — проверки прав в курсе, одна реализация на роль
type Policy interface {
	CanJoin(access CourseAccess) bool
	CanModerate(access CourseAccess) bool
	CanAnnounce(access CourseAccess) bool
}

func PolicyFor(role models.Role) Policy {
	switch role {
	case models.RoleAdmin:
		return adminPolicy{}
	case models.RoleTeacher:
		return teacherPolicy{}
	default:
		return studentPolicy{}
	}
}

func isMember(a CourseAccess) bool {
	return a.IsInstructor || a.IsEnrolled || a.IsAdmin
}

type studentPolicy struct{}

func (studentPolicy) CanJoin(a CourseAccess) bool   { return isMember(a) }
func (studentPolicy) CanModerate(CourseAccess) bool { return false }
func (studentPolicy) CanAnnounce(CourseAccess) bool { return false }

type teacherPolicy struct{}

func (teacherPolicy) CanJoin(a CourseAccess) bool     { return isMember(a) }
func (teacherPolicy) CanModerate(a CourseAccess) bool { return a.IsInstructor || a.IsAdmin }
func (teacherPolicy) CanAnnounce(a CourseAccess) bool { return a.IsInstructor || a.IsAdmin }

type adminPolicy struct{}

func (adminPolicy) CanJoin(CourseAccess) bool     { return true }
func (adminPolicy) CanModerate(CourseAccess) bool { return true }
func (adminPolicy) CanAnnounce(CourseAccess) bool { return true }
