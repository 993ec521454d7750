package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Course struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Code         string    `gorm:"uniqueIndex;size:32;not null"`
	Title        string    `gorm:"not null"`
	InstructorID uuid.UUID `gorm:"type:uuid;not null;index"`
	IsActive     bool      `gorm:"not null;default:true"`
	CreatedAt    time.Time

	Instructor User `gorm:"foreignKey:InstructorID"`
}

func (c *Course) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentDropped   EnrollmentStatus = "dropped"
	EnrollmentCompleted EnrollmentStatus = "completed"
)

// Enrollment связывает студента с курсом. Доступ к чату дают только активные записи
type Enrollment struct {
	CourseID   uuid.UUID        `gorm:"type:uuid;primaryKey"`
	StudentID  uuid.UUID        `gorm:"type:uuid;primaryKey"`
	Status     EnrollmentStatus `gorm:"size:16;not null;default:'active'"`
	EnrolledAt time.Time
}
