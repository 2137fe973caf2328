package entity

import "time"

// Статусы участия в челлендже
const (
	ProgressStatusActive    = "ACTIVE"
	ProgressStatusCompleted = "COMPLETED"
	ProgressStatusAbandoned = "ABANDONED"
)

// Статусы прохождения этапа
const (
	StageStatusPending   = "PENDING"
	StageStatusCompleted = "COMPLETED"
	StageStatusSkipped   = "SKIPPED"
)

// Типы подтверждения этапа
const (
	SubmissionText     = "TEXT"
	SubmissionImage    = "IMAGE"
	SubmissionLocation = "LOCATION"
	SubmissionQRCode   = "QR_CODE"
)

// IsValidSubmissionType проверяет тип подтверждения
func IsValidSubmissionType(t string) bool {
	switch t {
	case SubmissionText, SubmissionImage, SubmissionLocation, SubmissionQRCode:
		return true
	}
	return false
}

// IsValidProgressStatus проверяет статус участия
func IsValidProgressStatus(s string) bool {
	switch s {
	case ProgressStatusActive, ProgressStatusCompleted, ProgressStatusAbandoned:
		return true
	}
	return false
}

// ChallengeProgress - запись об участии пользователя в челлендже.
// Одна на пару (user_id, challenge_id).
type ChallengeProgress struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	UserID          uint            `gorm:"not null;uniqueIndex:idx_progress_user_challenge;index" json:"user_id"`
	ChallengeID     uint            `gorm:"not null;uniqueIndex:idx_progress_user_challenge;index" json:"challenge_id"`
	Status          string          `gorm:"size:20;not null;default:'ACTIVE'" json:"status"`
	StartedAt       time.Time       `gorm:"not null" json:"started_at"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	Challenge       *Challenge      `gorm:"foreignKey:ChallengeID;constraint:OnDelete:CASCADE" json:"challenge,omitempty"`
	User            *User           `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	StageProgresses []StageProgress `gorm:"foreignKey:ProgressID;constraint:OnDelete:CASCADE" json:"stage_progresses"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (ChallengeProgress) TableName() string {
	return "challenge_progresses"
}

// IsActive сообщает, можно ли продолжать прохождение
func (p *ChallengeProgress) IsActive() bool {
	return p.Status == ProgressStatusActive
}

// StageProgress - результат прохождения одного этапа. COMPLETED - терминальный статус.
type StageProgress struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	ProgressID     uint       `gorm:"not null;uniqueIndex:idx_stage_progress_unique" json:"progress_id"`
	StageID        uint       `gorm:"not null;uniqueIndex:idx_stage_progress_unique" json:"stage_id"`
	Status         string     `gorm:"size:20;not null;default:'PENDING'" json:"status"`
	SubmissionType string     `gorm:"size:20;not null;default:''" json:"submission_type"`
	Content        string     `gorm:"size:2000;not null;default:''" json:"content,omitempty"`
	Latitude       *float64   `json:"latitude,omitempty"`
	Longitude      *float64   `json:"longitude,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	Stage          *Stage     `gorm:"foreignKey:StageID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (StageProgress) TableName() string {
	return "stage_progresses"
}

// IsCompleted сообщает, пройден ли этап
func (s *StageProgress) IsCompleted() bool {
	return s.Status == StageStatusCompleted
}
