package services

import (
	"context"
	"database/sql"
	"time"

	"atkinsieve/internal/common"
	"atkinsieve/internal/database"
	"atkinsieve/internal/logging"
	"atkinsieve/internal/models"
)

// SaveSearch - данные поиска, которые клиент просит сохранить.
type SaveSearch struct {
	N1              int
	N2              int
	PrimesCount     int
	ExecutionTimeMs int64
}

// HistoryService проверяет данные и ограничивает время операций с историей.
type HistoryService struct {
	store   *database.HistoryStore
	maxN2   int
	timeout time.Duration
	logger  logging.Logger
}

func NewHistoryService(db *sql.DB, maxN2 int, timeout time.Duration, logger logging.Logger) *HistoryService {
	return &HistoryService{
		store:   database.NewHistoryStore(db),
		maxN2:   maxN2,
		timeout: timeout,
		logger:  logger.With("component", "history"),
	}
}

// Save добавляет запись в историю пользователя.
func (s *HistoryService) Save(ctx context.Context, userID int64, in SaveSearch) (int64, error) {
	if err := ValidateRange(in.N1, in.N2, s.maxN2); err != nil {
		return 0, err
	}
	if in.PrimesCount < 0 {
		return 0, common.NewValidationError("primesCount", "primesCount не может быть отрицательным")
	}
	if in.ExecutionTimeMs < 0 {
		return 0, common.NewValidationError("executionTimeMs", "executionTimeMs не может быть отрицательным")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	id, err := s.store.Append(ctx, userID, in.N1, in.N2, in.PrimesCount, in.ExecutionTimeMs)
	if err != nil {
		s.logger.Error(ctx, "ошибка сохранения истории", "user_id", userID, "error", err)
		return 0, err
	}
	s.logger.Info(ctx, "поиск сохранён в историю", "user_id", userID, "id", id, "n1", in.N1, "n2", in.N2)
	return id, nil
}

// Recent возвращает последние поиски пользователя, новые первыми.
func (s *HistoryService) Recent(ctx context.Context, userID int64) ([]models.SearchRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	recs, err := s.store.ListRecent(ctx, userID)
	if err != nil {
		s.logger.Error(ctx, "ошибка получения истории", "user_id", userID, "error", err)
		return nil, err
	}
	return recs, nil
}

// Clear удаляет всю историю пользователя. Пустая история - не ошибка.
func (s *HistoryService) Clear(ctx context.Context, userID int64) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.store.DeleteAll(ctx, userID)
	if err != nil {
		s.logger.Error(ctx, "ошибка удаления истории", "user_id", userID, "error", err)
		return err
	}
	s.logger.Info(ctx, "история удалена", "user_id", userID, "rows", n)
	return nil
}
