package models

import (
	"time"

	"gorm.io/gorm"
)

// Role is decided at signup and does not change afterwards.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

func (r Role) Valid() bool {
	return r == RolePatient || r == RoleDoctor
}

type User struct {
	gorm.Model
	FullName              string    `gorm:"column:full_name;size:255;not null" json:"full_name"`
	Email                 string    `gorm:"column:email;size:255;not null;uniqueIndex" json:"email"`
	PasswordHash          string    `gorm:"column:password_hash;size:255;not null" json:"-"`
	Role                  Role      `gorm:"column:role;size:20;not null" json:"role"`
	Phone                 string    `gorm:"column:phone;size:20;not null" json:"phone"`
	EmailVerified         bool      `gorm:"column:email_verified;default:false" json:"email_verified"`
	Refresh               string    `gorm:"column:refresh_token;size:255" json:"-"`
	RefreshTokenExpiredAt time.Time `gorm:"column:refresh_token_expired_at" json:"-"`
	EmailVerificationCode string    `gorm:"size:6" json:"-"`
	VerificationExpiry    time.Time `json:"-"`

	Profile *Profile `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"profile,omitempty"`
	Doctor  *Doctor  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"doctor,omitempty"`
}

// Profile carries the demographic and medical metadata for one identity.
// Exactly one row per user, created empty at signup.
type Profile struct {
	gorm.Model
	UserID           uint   `gorm:"column:user_id;not null;uniqueIndex" json:"user_id"`
	FirstName        string `gorm:"column:first_name;size:100" json:"first_name"`
	LastName         string `gorm:"column:last_name;size:100" json:"last_name"`
	PhoneNumber      string `gorm:"column:phone_number;size:20" json:"phone_number"`
	DateOfBirth      string `gorm:"column:date_of_birth;size:10" json:"date_of_birth"`
	Gender           string `gorm:"column:gender;size:20" json:"gender"`
	Address          string `gorm:"column:address;type:text" json:"address"`
	BloodType        string `gorm:"column:blood_type;size:5" json:"blood_type"`
	EmergencyContact string `gorm:"column:emergency_contact;type:text" json:"emergency_contact"`
	GuardianPhone    string `gorm:"column:guardian_phone;size:20" json:"guardian_phone"`
	HealthID         string `gorm:"column:health_id;size:17" json:"health_id"`
	AvatarURL        string `gorm:"column:avatar_url;size:255" json:"avatar_url"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}

type PasswordResetToken struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"not null"`
	Token     string    `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null"`
}
