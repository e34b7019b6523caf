package models

import (
	"gorm.io/gorm"
)

type Doctor struct {
	gorm.Model
	UserID                   uint    `gorm:"column:user_id;uniqueIndex" json:"user_id"`
	FullName                 string  `gorm:"column:full_name;size:255;not null" json:"full_name"`
	Specialization           string  `gorm:"column:specialization;size:100" json:"specialization"`
	Hospital                 string  `gorm:"column:hospital;size:255" json:"hospital"`
	YearsOfExperience        int     `gorm:"column:years_of_experience;default:0" json:"years_of_experience"`
	Rating                   float64 `gorm:"column:rating;default:0" json:"rating"`
	TotalRatings             int     `gorm:"column:total_ratings;default:0" json:"total_ratings"`
	AvailableForConsultation bool    `gorm:"column:available_for_consultation;default:true" json:"available_for_consultation"`
	AvatarURL                string  `gorm:"column:avatar_url;size:255" json:"avatar_url"`

	User    *User          `gorm:"foreignKey:UserID" json:"-"`
	Ratings []DoctorRating `gorm:"foreignKey:DoctorID" json:"ratings,omitempty"`
}

func (Doctor) TableName() string {
	return "doctors"
}

// DoctorRating is one patient's rating of a doctor after a completed
// consultation. The Doctor row keeps the running aggregate.
type DoctorRating struct {
	gorm.Model
	DoctorID  uint    `gorm:"column:doctor_id;not null;uniqueIndex:idx_doctor_patient" json:"doctor_id"`
	PatientID uint    `gorm:"column:patient_id;not null;uniqueIndex:idx_doctor_patient" json:"patient_id"`
	Rating    float64 `gorm:"column:rating;not null" json:"rating"`
	Comment   string  `gorm:"column:comment;type:text" json:"comment,omitempty"`

	Doctor *Doctor `gorm:"foreignKey:DoctorID" json:"-"`
}

func (DoctorRating) TableName() string {
	return "doctor_ratings"
}
