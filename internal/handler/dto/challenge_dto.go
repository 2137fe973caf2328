package dto

import (
	"time"

	"github.com/yourusername/challengequest-api/internal/domain/entity"
)

// StageInput - этап в запросе создания или обновления челленджа
type StageInput struct {
	Order       int      `json:"order" binding:"required,min=1"`
	Title       string   `json:"title" binding:"required,max=150"`
	Description string   `json:"description" binding:"omitempty,max=2000"`
	QRCode      *string  `json:"qrCode"`
	RequiresQR  bool     `json:"requiresQr"` // при generateQr токен будет сгенерирован
	Latitude    *float64 `json:"latitude" binding:"omitempty,min=-90,max=90"`
	Longitude   *float64 `json:"longitude" binding:"omitempty,min=-180,max=180"`
	Radius      *float64 `json:"radius" binding:"omitempty,gt=0"`
}

// ChallengeRequest - тело POST/PUT /api/admin/challenges.
// Для PUT отсутствие stages означает "оставить этапы как есть", пустой массив - удалить все.
type ChallengeRequest struct {
	Title           string       `json:"title" binding:"required,min=3,max=150"`
	Description     string       `json:"description" binding:"omitempty,max=2000"`
	CategoryID      *uint        `json:"categoryId"`
	Difficulty      string       `json:"difficulty"`
	XPReward        int          `json:"xpReward" binding:"required"`
	StartDate       time.Time    `json:"startDate" binding:"required"`
	EndDate         time.Time    `json:"endDate" binding:"required"`
	RequiredLevel   int          `json:"requiredLevel"`
	MaxParticipants *int         `json:"maxParticipants"`
	IsActive        *bool        `json:"isActive"`
	GenerateQR      bool         `json:"generateQr"`
	Stages          []StageInput `json:"stages" binding:"omitempty,dive"`
}

// ToEntity преобразует запрос в сущность челленджа
func (r *ChallengeRequest) ToEntity() *entity.Challenge {
	ch := &entity.Challenge{
		Title:           r.Title,
		Description:     r.Description,
		CategoryID:      r.CategoryID,
		Difficulty:      r.Difficulty,
		XPReward:        r.XPReward,
		StartDate:       r.StartDate,
		EndDate:         r.EndDate,
		RequiredLevel:   r.RequiredLevel,
		MaxParticipants: r.MaxParticipants,
		IsActive:        true,
	}
	if r.IsActive != nil {
		ch.IsActive = *r.IsActive
	}
	if r.Stages != nil {
		ch.Stages = make([]entity.Stage, 0, len(r.Stages))
		for _, s := range r.Stages {
			ch.Stages = append(ch.Stages, entity.Stage{
				Order:       s.Order,
				Title:       s.Title,
				Description: s.Description,
				QRCode:      s.QRCode,
				Latitude:    s.Latitude,
				Longitude:   s.Longitude,
				Radius:      s.Radius,
			})
		}
	}
	return ch
}

// QRRequested возвращает порядковые номера этапов, которым нужен сгенерированный QR-токен
func (r *ChallengeRequest) QRRequested() map[int]bool {
	orders := make(map[int]bool)
	for _, s := range r.Stages {
		if s.RequiresQR {
			orders[s.Order] = true
		}
	}
	return orders
}

// ChallengeDetailsResponse - челлендж с числом участников
type ChallengeDetailsResponse struct {
	*entity.Challenge
	ParticipantCount int64 `json:"participant_count"`
}

// AdminStageResponse - этап вместе с QR-токеном, только для ответов админке
type AdminStageResponse struct {
	ID          uint     `json:"id"`
	Order       int      `json:"order"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	QRCode      *string  `json:"qr_code,omitempty"`
	RequiresQR  bool     `json:"requires_qr"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	Radius      *float64 `json:"radius,omitempty"`
}

// AdminChallengeResponse - челлендж с этапами для POST/PUT /api/admin/challenges.
// Поле Stages перекрывает публичный список этапов встроенной сущности.
type AdminChallengeResponse struct {
	*entity.Challenge
	Stages []AdminStageResponse `json:"stages"`
}

// NewAdminChallengeResponse собирает ответ админке, сохраняя QR-токены этапов
func NewAdminChallengeResponse(ch *entity.Challenge) *AdminChallengeResponse {
	stages := make([]AdminStageResponse, 0, len(ch.Stages))
	for i := range ch.Stages {
		st := &ch.Stages[i]
		stages = append(stages, AdminStageResponse{
			ID:          st.ID,
			Order:       st.Order,
			Title:       st.Title,
			Description: st.Description,
			QRCode:      st.QRCode,
			RequiresQR:  st.RequiresQR(),
			Latitude:    st.Latitude,
			Longitude:   st.Longitude,
			Radius:      st.Radius,
		})
	}
	return &AdminChallengeResponse{Challenge: ch, Stages: stages}
}

// PaginatedChallengesResponse - страница списка челленджей
type PaginatedChallengesResponse struct {
	Challenges []entity.Challenge `json:"challenges"`
	Total      int64              `json:"total"`
	Page       int                `json:"page"`
	PerPage    int                `json:"per_page"`
}

// JoinChallengeRequest - тело POST /api/challenges/join
type JoinChallengeRequest struct {
	ChallengeID uint `json:"challengeId" binding:"required"`
}

// SubmitStageRequest - тело POST /api/challenges/submit-stage
type SubmitStageRequest struct {
	StageID        uint     `json:"stageId" binding:"required"`
	SubmissionType string   `json:"submissionType" binding:"required"`
	Content        string   `json:"content" binding:"omitempty,max=2000"`
	Latitude       *float64 `json:"latitude" binding:"omitempty,min=-90,max=90"`
	Longitude      *float64 `json:"longitude" binding:"omitempty,min=-180,max=180"`
}

// SubmitStageResponse - результат отправки этапа
type SubmitStageResponse struct {
	StageProgress      *entity.StageProgress `json:"stage_progress"`
	CompletedStages    int64                 `json:"completed_stages"`
	TotalStages        int64                 `json:"total_stages"`
	ChallengeCompleted bool                  `json:"challenge_completed"`
	XPAwarded          int                   `json:"xp_awarded,omitempty"`
	NewXP              int                   `json:"new_xp,omitempty"`
	NewLevel           int                   `json:"new_level,omitempty"`
	LeveledUp          bool                  `json:"leveled_up"`
}

// CategoryRequest - тело запроса создания или обновления категории
type CategoryRequest struct {
	Name        string `json:"name" binding:"required,min=2,max=100"`
	Description string `json:"description" binding:"omitempty,max=500"`
	Icon        string `json:"icon" binding:"omitempty,max=255"`
}

// LevelRequest - тело запроса создания или обновления уровня
type LevelRequest struct {
	Number   int    `json:"number" binding:"required,min=1"`
	Name     string `json:"name" binding:"omitempty,max=100"`
	MinXP    int    `json:"minXp" binding:"min=0"`
	MaxXP    int    `json:"maxXp" binding:"min=0"`
	IsActive *bool  `json:"isActive"`
}

// ToEntity преобразует запрос в сущность уровня
func (r *LevelRequest) ToEntity() *entity.Level {
	lvl := &entity.Level{
		Number:   r.Number,
		Name:     r.Name,
		MinXP:    r.MinXP,
		MaxXP:    r.MaxXP,
		IsActive: true,
	}
	if r.IsActive != nil {
		lvl.IsActive = *r.IsActive
	}
	return lvl
}

// RecomputeLevelsResponse - итог пакетного пересчета уровней
type RecomputeLevelsResponse struct {
	Processed int `json:"processed"`
	Updated   int `json:"updated"`
	Ranked    int `json:"ranked"`
}
