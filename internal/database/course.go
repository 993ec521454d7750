package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/thereayou/coursechat/internal/chat"
	"github.com/thereayou/coursechat/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (d *Database) CreateCourse(ctx context.Context, course *models.Course) error {
	return errors.Wrap(d.db.WithContext(ctx).Create(course).Error, "database: create course")
}

// Enroll создаёт запись о зачислении или обновляет её статус
func (d *Database) Enroll(ctx context.Context, enrollment *models.Enrollment) error {
	err := d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "course_id"}, {Name: "student_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status"}),
	}).Create(enrollment).Error
	return errors.Wrap(err, "database: enroll")
}

// GetCourseAccess — оракул членства: преподаватель курса, активный студент или администратор
func (d *Database) GetCourseAccess(ctx context.Context, userID, courseID uuid.UUID) (chat.CourseAccess, error) {
	db := d.db.WithContext(ctx)

	var course models.Course
	if err := db.Select("id", "instructor_id").First(&course, "id = ?", courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return chat.CourseAccess{}, chat.ErrCourseNotFound
		}
		return chat.CourseAccess{}, errors.Wrap(err, "database: get course")
	}

	access := chat.CourseAccess{IsInstructor: course.InstructorID == userID}

	var enrolled int64
	err := db.Model(&models.Enrollment{}).
		Where("course_id = ? AND student_id = ? AND status = ?", courseID, userID, models.EnrollmentActive).
		Count(&enrolled).Error
	if err != nil {
		return chat.CourseAccess{}, errors.Wrap(err, "database: count enrollment")
	}
	access.IsEnrolled = enrolled > 0

	var admins int64
	err = db.Model(&models.User{}).
		Where("id = ? AND role = ? AND is_active = ?", userID, models.RoleAdmin, true).
		Count(&admins).Error
	if err != nil {
		return chat.CourseAccess{}, errors.Wrap(err, "database: check admin")
	}
	access.IsAdmin = admins > 0

	return access, nil
}
