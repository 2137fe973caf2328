package service

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/yourusername/challengequest-api/internal/domain/entity"
	"github.com/yourusername/challengequest-api/internal/domain/repository"
	"github.com/yourusername/challengequest-api/internal/handler/dto"
	apperrors "github.com/yourusername/challengequest-api/internal/pkg/errors"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// normalizePage приводит параметры пагинации к допустимым значениям
func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	} else if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

// ChallengeService предоставляет методы для работы с челленджами
type ChallengeService struct {
	challengeRepo repository.ChallengeRepository
	categoryRepo  repository.CategoryRepository
}

// NewChallengeService создает новый сервис челленджей
func NewChallengeService(challengeRepo repository.ChallengeRepository, categoryRepo repository.CategoryRepository) *ChallengeService {
	return &ChallengeService{
		challengeRepo: challengeRepo,
		categoryRepo:  categoryRepo,
	}
}

// ListChallenges возвращает страницу челленджей с фильтрами
func (s *ChallengeService) ListChallenges(filter repository.ChallengeFilter, page, pageSize int) (*dto.PaginatedChallengesResponse, error) {
	page, pageSize = normalizePage(page, pageSize)
	filter.Difficulty = strings.ToUpper(strings.TrimSpace(filter.Difficulty))
	if filter.Difficulty != "" && !entity.IsValidDifficulty(filter.Difficulty) {
		return nil, apperrors.Validation("invalid difficulty filter")
	}
	filter.Search = strings.TrimSpace(filter.Search)

	challenges, total, err := s.challengeRepo.List(filter, pageSize, (page-1)*pageSize)
	if err != nil {
		log.Printf("[ChallengeService] Ошибка получения списка челленджей: %v", err)
		return nil, err
	}
	if challenges == nil {
		challenges = []entity.Challenge{}
	}
	return &dto.PaginatedChallengesResponse{
		Challenges: challenges,
		Total:      total,
		Page:       page,
		PerPage:    pageSize,
	}, nil
}

// GetChallenge возвращает челлендж с этапами и числом участников
func (s *ChallengeService) GetChallenge(id uint) (*dto.ChallengeDetailsResponse, error) {
	challenge, err := s.challengeRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrChallengeNotFound
		}
		return nil, err
	}
	count, err := s.challengeRepo.CountParticipants(id)
	if err != nil {
		return nil, err
	}
	return &dto.ChallengeDetailsResponse{Challenge: challenge, ParticipantCount: count}, nil
}

// CreateChallenge проверяет и создает челлендж вместе с этапами.
// qrFor - порядковые номера этапов, для которых нужно сгенерировать QR-токен.
func (s *ChallengeService) CreateChallenge(challenge *entity.Challenge, qrFor map[int]bool, createdBy uint) (*entity.Challenge, error) {
	if err := s.prepare(challenge, qrFor); err != nil {
		return nil, err
	}
	if createdBy != 0 {
		challenge.CreatedBy = &createdBy
	}

	if err := s.challengeRepo.Create(challenge); err != nil {
		log.Printf("[ChallengeService] Ошибка создания челленджа %q: %v", challenge.Title, err)
		return nil, fmt.Errorf("failed to create challenge: %w", err)
	}
	log.Printf("[ChallengeService] Челлендж ID=%d создан, этапов: %d", challenge.ID, len(challenge.Stages))
	return s.challengeRepo.GetByID(challenge.ID)
}

// UpdateChallenge обновляет челлендж. Если challenge.Stages != nil, этапы заменяются целиком,
// а прогресс по старым этапам удаляется.
func (s *ChallengeService) UpdateChallenge(id uint, challenge *entity.Challenge, qrFor map[int]bool) (*entity.Challenge, error) {
	if _, err := s.challengeRepo.GetByID(id); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrChallengeNotFound
		}
		return nil, err
	}

	replaceStages := challenge.Stages != nil
	challenge.ID = id
	if err := s.prepare(challenge, qrFor); err != nil {
		return nil, err
	}

	if err := s.challengeRepo.Update(challenge, replaceStages); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrChallengeNotFound
		}
		log.Printf("[ChallengeService] Ошибка обновления челленджа ID=%d: %v", id, err)
		return nil, fmt.Errorf("failed to update challenge: %w", err)
	}
	log.Printf("[ChallengeService] Челлендж ID=%d обновлен (замена этапов: %v)", id, replaceStages)
	return s.challengeRepo.GetByID(id)
}

// DeleteChallenge удаляет челлендж вместе с участиями и прогрессом
func (s *ChallengeService) DeleteChallenge(id uint) error {
	if err := s.challengeRepo.Delete(id); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.ErrChallengeNotFound
		}
		return err
	}
	log.Printf("[ChallengeService] Челлендж ID=%d удален", id)
	return nil
}

// GetParticipantsForExport возвращает челлендж и всех его участников для выгрузки
func (s *ChallengeService) GetParticipantsForExport(id uint) (*entity.Challenge, []repository.ParticipantRow, error) {
	challenge, err := s.challengeRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil, apperrors.ErrChallengeNotFound
		}
		return nil, nil, err
	}
	rows, err := s.challengeRepo.ListParticipants(id)
	if err != nil {
		return nil, nil, err
	}
	return challenge, rows, nil
}

// prepare нормализует поля, проверяет инварианты и генерирует QR-токены
func (s *ChallengeService) prepare(ch *entity.Challenge, qrFor map[int]bool) error {
	ch.Title = strings.TrimSpace(ch.Title)
	ch.Difficulty = strings.ToUpper(strings.TrimSpace(ch.Difficulty))
	if ch.Difficulty == "" {
		ch.Difficulty = entity.DifficultyEasy
	}
	if ch.RequiredLevel == 0 {
		ch.RequiredLevel = 1
	}

	switch {
	case ch.Title == "":
		return apperrors.Validation("title is required")
	case !entity.IsValidDifficulty(ch.Difficulty):
		return apperrors.Validation("invalid difficulty")
	case ch.XPReward <= 0:
		return apperrors.Validation("xpReward must be positive")
	case !ch.StartDate.Before(ch.EndDate):
		return apperrors.Validation("startDate must be before endDate")
	case ch.RequiredLevel < 1:
		return apperrors.Validation("requiredLevel must be at least 1")
	case ch.MaxParticipants != nil && *ch.MaxParticipants <= 0:
		return apperrors.Validation("maxParticipants must be positive")
	}

	if ch.CategoryID != nil {
		if _, err := s.categoryRepo.GetByID(*ch.CategoryID); err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return apperrors.Validation("category not found")
			}
			return err
		}
	}

	seen := make(map[int]bool, len(ch.Stages))
	for i := range ch.Stages {
		st := &ch.Stages[i]
		st.Title = strings.TrimSpace(st.Title)
		if st.Order < 1 {
			return apperrors.Validation(fmt.Sprintf("stage %d: order must be at least 1", i+1))
		}
		if seen[st.Order] {
			return apperrors.Validation(fmt.Sprintf("duplicate stage order %d", st.Order))
		}
		seen[st.Order] = true
		if st.Title == "" {
			return apperrors.Validation(fmt.Sprintf("stage %d: title is required", st.Order))
		}
		if (st.Latitude == nil) != (st.Longitude == nil) {
			return apperrors.Validation(fmt.Sprintf("stage %d: latitude and longitude must be set together", st.Order))
		}
		if st.Radius != nil && *st.Radius <= 0 {
			return apperrors.Validation(fmt.Sprintf("stage %d: radius must be positive", st.Order))
		}
		if st.QRCode != nil && strings.TrimSpace(*st.QRCode) == "" {
			st.QRCode = nil
		}
		if qrFor[st.Order] && st.QRCode == nil {
			token := uuid.NewString()
			st.QRCode = &token
		}
	}
	return nil
}
