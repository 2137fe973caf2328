package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/yourusername/challengequest-api/internal/pkg/errors"
	"github.com/yourusername/challengequest-api/internal/pkg/response"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// bindJSON разбирает тело запроса и отвечает 400 при ошибке
func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Fail(c, http.StatusBadRequest, apperrors.CodeValidation, "Invalid request data: "+err.Error())
		return false
	}
	return true
}

// pageParams читает page и page_size из query с ограничениями
func pageParams(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))
	if err != nil || pageSize < 1 {
		pageSize = defaultPageSize
	} else if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}
