package entity

import "time"

// Level - диапазон XP [MinXP, MaxXP], соответствующий номеру уровня
type Level struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Number    int       `gorm:"not null;uniqueIndex" json:"number"`
	Name      string    `gorm:"size:100;not null;default:''" json:"name"`
	MinXP     int       `gorm:"column:min_xp;not null" json:"min_xp"`
	MaxXP     int       `gorm:"column:max_xp;not null" json:"max_xp"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Level) TableName() string {
	return "levels"
}

// Contains сообщает, попадает ли xp в диапазон уровня
func (l *Level) Contains(xp int) bool {
	return xp >= l.MinXP && xp <= l.MaxXP
}

// Overlaps сообщает, пересекаются ли два диапазона
func (l *Level) Overlaps(other *Level) bool {
	return l.MinXP <= other.MaxXP && other.MinXP <= l.MaxXP
}
