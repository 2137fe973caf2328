package handler

import (
	"log"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/challengequest-api/internal/handler/dto"
	"github.com/yourusername/challengequest-api/internal/pkg/response"
	"github.com/yourusername/challengequest-api/internal/service"
)

// LevelHandler обрабатывает запросы уровней
type LevelHandler struct {
	levelService *service.LevelService
}

// NewLevelHandler создает новый обработчик уровней
func NewLevelHandler(levelService *service.LevelService) *LevelHandler {
	return &LevelHandler{levelService: levelService}
}

// ListLevels возвращает уровни. Публично отдаются только активные, ?all=true - все (для админки).
func (h *LevelHandler) ListLevels(c *gin.Context) {
	all, _ := strconv.ParseBool(c.DefaultQuery("all", "false"))
	levels, err := h.levelService.ListLevels(c.Request.Context(), !all)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, levels)
}

func (h *LevelHandler) CreateLevel(c *gin.Context) {
	var req dto.LevelRequest
	if !bindJSON(c, &req) {
		return
	}
	level, err := h.levelService.CreateLevel(c.Request.Context(), req.ToEntity())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, level)
}

func (h *LevelHandler) UpdateLevel(c *gin.Context) {
	var req dto.LevelRequest
	if !bindJSON(c, &req) {
		return
	}
	level, err := h.levelService.UpdateLevel(c.Request.Context(), c.MustGet("levelID").(uint), req.ToEntity())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, level)
}

func (h *LevelHandler) DeleteLevel(c *gin.Context) {
	if err := h.levelService.DeleteLevel(c.Request.Context(), c.MustGet("levelID").(uint)); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "Level deleted")
}

// RecomputeLevels пересчитывает уровни всех пользователей по текущим диапазонам
func (h *LevelHandler) RecomputeLevels(c *gin.Context) {
	result, err := h.levelService.RecomputeAllLevels(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	log.Printf("[LevelHandler] Пересчет уровней: обработано %d, обновлено %d", result.Processed, result.Updated)
	response.OK(c, result)
}
