package handler

import (
	"encoding/csv"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"github.com/yourusername/challengequest-api/internal/domain/entity"
	"github.com/yourusername/challengequest-api/internal/domain/repository"
	"github.com/yourusername/challengequest-api/internal/pkg/response"
)

const exportTimeLayout = "2006-01-02 15:04"

var participantHeaders = []string{"ID пользователя", "Пользователь", "Email", "Статус", "Пройдено этапов", "Всего этапов", "Начал", "Завершил"}

// ExportParticipants выгружает участников челленджа в CSV или Excel
// GET /api/admin/challenges/:id/export?format=csv|xlsx
func (h *ChallengeHandler) ExportParticipants(c *gin.Context) {
	challengeID := c.MustGet("challengeID").(uint)
	format := c.DefaultQuery("format", "csv")

	challenge, rows, err := h.catalog.GetParticipantsForExport(challengeID)
	if err != nil {
		response.Error(c, err)
		return
	}

	filename := fmt.Sprintf("challenge_%d_participants_%s", challengeID, time.Now().Format("2006-01-02"))

	switch format {
	case "xlsx":
		exportParticipantsXLSX(c, challenge, rows, filename)
	default:
		exportParticipantsCSV(c, challenge, rows, filename)
	}
}

func participantRecord(row repository.ParticipantRow, totalStages int) []string {
	completedAt := ""
	if row.CompletedAt != nil {
		completedAt = row.CompletedAt.Format(exportTimeLayout)
	}
	return []string{
		strconv.FormatUint(uint64(row.UserID), 10),
		sanitizeForExcel(row.Username),
		sanitizeForExcel(row.Email),
		row.Status,
		strconv.Itoa(row.CompletedStages),
		strconv.Itoa(totalStages),
		row.StartedAt.Format(exportTimeLayout),
		completedAt,
	}
}

// exportParticipantsCSV пишет CSV с BOM, чтобы Excel корректно открыл UTF-8
func exportParticipantsCSV(c *gin.Context, challenge *entity.Challenge, rows []repository.ParticipantRow, filename string) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.csv\"", filename))
	c.Status(http.StatusOK)

	c.Writer.Write([]byte{0xEF, 0xBB, 0xBF})

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	writer.Write(participantHeaders)
	for _, row := range rows {
		writer.Write(participantRecord(row, len(challenge.Stages)))
	}
}

// exportParticipantsXLSX пишет Excel через StreamWriter
func exportParticipantsXLSX(c *gin.Context, challenge *entity.Challenge, rows []repository.ParticipantRow, filename string) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Участники"
	f.SetSheetName("Sheet1", sheetName)

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		log.Printf("[ChallengeHandler] Ошибка создания StreamWriter: %v", err)
		response.Fail(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create Excel file")
		return
	}

	headers := make([]interface{}, len(participantHeaders))
	for i, h := range participantHeaders {
		headers[i] = h
	}
	if err := sw.SetRow("A1", headers); err != nil {
		log.Printf("[ChallengeHandler] Ошибка записи заголовков: %v", err)
	}

	for i, row := range rows {
		rowNum := i + 2
		record := participantRecord(row, len(challenge.Stages))
		values := []interface{}{
			row.UserID, record[1], record[2], record[3],
			row.CompletedStages, len(challenge.Stages), record[6], record[7],
		}
		if err := sw.SetRow(fmt.Sprintf("A%d", rowNum), values); err != nil {
			log.Printf("[ChallengeHandler] Ошибка записи строки %d: %v", rowNum, err)
		}
	}

	if err := sw.Flush(); err != nil {
		log.Printf("[ChallengeHandler] Ошибка при Flush: %v", err)
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.xlsx\"", filename))
	c.Status(http.StatusOK)
	if err := f.Write(c.Writer); err != nil {
		log.Printf("[ChallengeHandler] Ошибка записи Excel в response: %v", err)
	}
}

// sanitizeForExcel экранирует данные для защиты от formula injection в Excel/CSV
func sanitizeForExcel(s string) string {
	if len(s) == 0 {
		return s
	}
	// Символы, начинающие формулу в Excel/LibreOffice: = + - @ \t \r
	if s[0] == '=' || s[0] == '+' || s[0] == '-' || s[0] == '@' || s[0] == '\t' || s[0] == '\r' {
		return "'" + s
	}
	return s
}
