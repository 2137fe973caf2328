package entity

import (
	"encoding/json"
	"strings"
	"time"
)

// Сложность челленджа
const (
	DifficultyEasy   = "EASY"
	DifficultyMedium = "MEDIUM"
	DifficultyHard   = "HARD"
	DifficultyExpert = "EXPERT"
)

// IsValidDifficulty проверяет значение сложности
func IsValidDifficulty(d string) bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyExpert:
		return true
	}
	return false
}

// Category группирует челленджи
type Category struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:100;not null;uniqueIndex" json:"name"`
	Description string    `gorm:"size:500;not null;default:''" json:"description"`
	Icon        string    `gorm:"size:255;not null;default:''" json:"icon"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Category) TableName() string {
	return "categories"
}

// Challenge - шаблон из упорядоченных этапов с наградой и окном доступности
type Challenge struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Title           string    `gorm:"size:150;not null" json:"title"`
	Description     string    `gorm:"size:2000;not null;default:''" json:"description"`
	CategoryID      *uint     `gorm:"index" json:"category_id,omitempty"`
	Category        *Category `gorm:"foreignKey:CategoryID;constraint:OnDelete:SET NULL" json:"category,omitempty"`
	Difficulty      string    `gorm:"size:20;not null;default:'EASY'" json:"difficulty"`
	XPReward        int       `gorm:"not null" json:"xp_reward"`
	StartDate       time.Time `gorm:"not null" json:"start_date"`
	EndDate         time.Time `gorm:"not null" json:"end_date"`
	RequiredLevel   int       `gorm:"not null;default:1" json:"required_level"`
	MaxParticipants *int      `json:"max_participants,omitempty"`
	IsActive        bool      `gorm:"not null;default:true;index" json:"is_active"`
	CreatedBy       *uint     `json:"created_by,omitempty"`
	Stages          []Stage   `gorm:"foreignKey:ChallengeID;constraint:OnDelete:CASCADE" json:"stages,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Challenge) TableName() string {
	return "challenges"
}

// HasStarted сообщает, наступило ли время начала
func (c *Challenge) HasStarted(now time.Time) bool {
	return !now.Before(c.StartDate)
}

// HasEnded сообщает, прошло ли время окончания
func (c *Challenge) HasEnded(now time.Time) bool {
	return now.After(c.EndDate)
}

// IsOpenAt проверяет, что now попадает в [StartDate, EndDate]
func (c *Challenge) IsOpenAt(now time.Time) bool {
	return c.HasStarted(now) && !c.HasEnded(now)
}

// HasCapacityLimit сообщает, ограничено ли число участников
func (c *Challenge) HasCapacityLimit() bool {
	return c.MaxParticipants != nil
}

// Stage - одна контрольная точка челленджа
type Stage struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ChallengeID uint      `gorm:"not null;uniqueIndex:idx_stage_challenge_order" json:"challenge_id"`
	Order       int       `gorm:"column:stage_order;not null;uniqueIndex:idx_stage_challenge_order" json:"order"`
	Title       string    `gorm:"size:150;not null" json:"title"`
	Description string    `gorm:"size:2000;not null;default:''" json:"description"`
	QRCode      *string   `gorm:"column:qr_code;size:255" json:"-"` // секрет проверки, в публичный JSON не попадает
	Latitude    *float64  `json:"latitude,omitempty"`
	Longitude   *float64  `json:"longitude,omitempty"`
	Radius      *float64  `json:"radius,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Stage) TableName() string {
	return "stages"
}

// RequiresQR сообщает, закрыт ли этап QR-кодом
func (s *Stage) RequiresQR() bool {
	return s.QRCode != nil && strings.TrimSpace(*s.QRCode) != ""
}

// MarshalJSON отдает вместо QR-токена только признак requires_qr
func (s Stage) MarshalJSON() ([]byte, error) {
	type plain Stage
	return json.Marshal(struct {
		plain
		RequiresQR bool `json:"requires_qr"`
	}{plain(s), s.RequiresQR()})
}

// HasLocation сообщает, заданы ли координаты этапа
func (s *Stage) HasLocation() bool {
	return s.Latitude != nil && s.Longitude != nil
}
