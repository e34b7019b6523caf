package models

import (
	"time"

	"gorm.io/gorm"
)

type MedicalRecordType string

const (
	RecordConsultationNote MedicalRecordType = "consultation_note"
	RecordLabResult        MedicalRecordType = "lab_result"
	RecordPrescription     MedicalRecordType = "prescription"
	RecordImagingReport    MedicalRecordType = "imaging_report"
	RecordVaccination      MedicalRecordType = "vaccination"
	RecordOther            MedicalRecordType = "other"
)

type MedicalRecord struct {
	gorm.Model
	PatientID  uint              `gorm:"column:patient_id;not null;index" json:"patient_id"`
	DoctorID   uint              `gorm:"column:doctor_id;index" json:"doctor_id,omitempty"`
	RecordType MedicalRecordType `gorm:"column:record_type;size:50;not null" json:"record_type"`
	RecordDate time.Time         `gorm:"column:record_date;not null" json:"record_date"`
	Title      string            `gorm:"column:title;size:255;not null" json:"title"`
	Department string            `gorm:"column:department;size:100" json:"department"`
	Summary    string            `gorm:"column:summary;type:text" json:"summary"`
	Details    string            `gorm:"column:details;type:text" json:"details"`

	Patient     *User              `gorm:"foreignKey:PatientID" json:"-"`
	Attachments []RecordAttachment `gorm:"foreignKey:MedicalRecordID;constraint:OnDelete:CASCADE" json:"attachments,omitempty"`
}

type RecordAttachment struct {
	gorm.Model
	MedicalRecordID uint   `gorm:"column:medical_record_id;not null;index" json:"medical_record_id"`
	FileName        string `gorm:"column:file_name;size:255;not null" json:"file_name"`
	FilePath        string `gorm:"column:file_path;size:500;not null" json:"file_path"`
	FileSize        int64  `gorm:"column:file_size" json:"file_size"`
	MimeType        string `gorm:"column:mime_type;size:100" json:"mime_type"`
}
