package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/challengequest-api/internal/domain/entity"
	"github.com/yourusername/challengequest-api/internal/domain/repository"
	"github.com/yourusername/challengequest-api/internal/handler/dto"
	"github.com/yourusername/challengequest-api/internal/middleware"
	apperrors "github.com/yourusername/challengequest-api/internal/pkg/errors"
	"github.com/yourusername/challengequest-api/internal/pkg/response"
	"github.com/yourusername/challengequest-api/internal/service/progression"
)

// ProgressEngine - операции прохождения челленджей
type ProgressEngine interface {
	JoinChallenge(ctx context.Context, userID, challengeID uint) (*entity.ChallengeProgress, error)
	SubmitStage(ctx context.Context, userID uint, sub progression.StageSubmission) (*progression.SubmitResult, error)
	GetUserChallenges(ctx context.Context, userID uint, status string) ([]entity.ChallengeProgress, error)
	AbandonChallenge(ctx context.Context, userID, challengeID uint) (*entity.ChallengeProgress, error)
}

// ChallengeCatalog - каталог челленджей и его администрирование
type ChallengeCatalog interface {
	ListChallenges(filter repository.ChallengeFilter, page, pageSize int) (*dto.PaginatedChallengesResponse, error)
	GetChallenge(id uint) (*dto.ChallengeDetailsResponse, error)
	CreateChallenge(challenge *entity.Challenge, qrFor map[int]bool, createdBy uint) (*entity.Challenge, error)
	UpdateChallenge(id uint, challenge *entity.Challenge, qrFor map[int]bool) (*entity.Challenge, error)
	DeleteChallenge(id uint) error
	GetParticipantsForExport(id uint) (*entity.Challenge, []repository.ParticipantRow, error)
}

// ChallengeHandler обрабатывает запросы каталога и прохождения челленджей
type ChallengeHandler struct {
	catalog ChallengeCatalog
	engine  ProgressEngine
}

// NewChallengeHandler создает новый обработчик челленджей
func NewChallengeHandler(catalog ChallengeCatalog, engine ProgressEngine) *ChallengeHandler {
	return &ChallengeHandler{catalog: catalog, engine: engine}
}

// ListChallenges возвращает страницу челленджей.
// GET /api/challenges?page&page_size&category_id&difficulty&active&search
// Без параметра active показываются только активные челленджи, active=all снимает фильтр.
func (h *ChallengeHandler) ListChallenges(c *gin.Context) {
	page, pageSize := pageParams(c)

	filter := repository.ChallengeFilter{
		Difficulty: c.Query("difficulty"),
		Search:     c.Query("search"),
	}
	if raw := c.Query("category_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || id == 0 {
			response.Fail(c, http.StatusBadRequest, apperrors.CodeValidation, "Invalid category_id")
			return
		}
		categoryID := uint(id)
		filter.CategoryID = &categoryID
	}
	switch raw := strings.ToLower(c.DefaultQuery("active", "true")); raw {
	case "all":
	default:
		active, err := strconv.ParseBool(raw)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, apperrors.CodeValidation, "Invalid active filter")
			return
		}
		filter.IsActive = &active
	}

	result, err := h.catalog.ListChallenges(filter, page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// GetChallenge возвращает челлендж с этапами
func (h *ChallengeHandler) GetChallenge(c *gin.Context) {
	challenge, err := h.catalog.GetChallenge(c.MustGet("challengeID").(uint))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, challenge)
}

// JoinChallenge записывает пользователя в челлендж
func (h *ChallengeHandler) JoinChallenge(c *gin.Context) {
	var req dto.JoinChallengeRequest
	if !bindJSON(c, &req) {
		return
	}
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, apperrors.CodeUnauthorized, "Unauthorized")
		return
	}

	progress, err := h.engine.JoinChallenge(c.Request.Context(), userID, req.ChallengeID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, progress)
}

// SubmitStage принимает подтверждение прохождения этапа
func (h *ChallengeHandler) SubmitStage(c *gin.Context) {
	var req dto.SubmitStageRequest
	if !bindJSON(c, &req) {
		return
	}
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, apperrors.CodeUnauthorized, "Unauthorized")
		return
	}

	result, err := h.engine.SubmitStage(c.Request.Context(), userID, progression.StageSubmission{
		StageID:        req.StageID,
		SubmissionType: req.SubmissionType,
		Content:        req.Content,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.SubmitStageResponse{
		StageProgress:      result.StageProgress,
		CompletedStages:    int64(result.CompletedStages),
		TotalStages:        int64(result.TotalStages),
		ChallengeCompleted: result.ChallengeCompleted,
		XPAwarded:          result.XPAwarded,
		NewXP:              result.NewXP,
		NewLevel:           result.NewLevel,
		LeveledUp:          result.LeveledUp,
	})
}

// GetMyChallenges возвращает участия текущего пользователя
func (h *ChallengeHandler) GetMyChallenges(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, apperrors.CodeUnauthorized, "Unauthorized")
		return
	}

	progresses, err := h.engine.GetUserChallenges(c.Request.Context(), userID, c.Query("status"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, progresses)
}

// AbandonChallenge завершает участие без награды
func (h *ChallengeHandler) AbandonChallenge(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, apperrors.CodeUnauthorized, "Unauthorized")
		return
	}

	progress, err := h.engine.AbandonChallenge(c.Request.Context(), userID, c.MustGet("challengeID").(uint))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, progress)
}

// CreateChallenge создает челлендж (админ)
func (h *ChallengeHandler) CreateChallenge(c *gin.Context) {
	var req dto.ChallengeRequest
	if !bindJSON(c, &req) {
		return
	}
	adminID, _ := middleware.UserID(c)

	challenge, err := h.catalog.CreateChallenge(req.ToEntity(), qrTargets(&req), adminID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewAdminChallengeResponse(challenge))
}

// UpdateChallenge обновляет челлендж (админ)
func (h *ChallengeHandler) UpdateChallenge(c *gin.Context) {
	var req dto.ChallengeRequest
	if !bindJSON(c, &req) {
		return
	}

	challenge, err := h.catalog.UpdateChallenge(c.MustGet("challengeID").(uint), req.ToEntity(), qrTargets(&req))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewAdminChallengeResponse(challenge))
}

// DeleteChallenge удаляет челлендж (админ)
func (h *ChallengeHandler) DeleteChallenge(c *gin.Context) {
	if err := h.catalog.DeleteChallenge(c.MustGet("challengeID").(uint)); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "Challenge deleted")
}

// qrTargets возвращает этапы, которым нужен сгенерированный QR-токен.
// Без generateQr токены не генерируются.
func qrTargets(req *dto.ChallengeRequest) map[int]bool {
	if !req.GenerateQR {
		return nil
	}
	return req.QRRequested()
}
