package database

import (
	"context"
	"fmt"
	"time"

	"atkinsieve/internal/models"
)

// HistoryLimit - сколько последних поисков отдаёт ListRecent.
const HistoryLimit = 50

// HistoryStore - история поисков пользователей (таблица search_history).
//
// Каскадное удаление сам не запускает: при удалении аккаунта вызывающий
// создаёт HistoryStore поверх *sql.Tx и вызывает DeleteAll внутри своей транзакции.
type HistoryStore struct {
	db  DBTX
	now func() time.Time
}

func NewHistoryStore(db DBTX) *HistoryStore {
	return &HistoryStore{db: db, now: time.Now}
}

// Append сохраняет запись поиска со временем сервера и возвращает её id.
func (s *HistoryStore) Append(ctx context.Context, userID int64, n1, n2, primesCount int, executionTimeMs int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO search_history (user_id, n1, n2, primes_count, execution_time_ms, search_time)
		VALUES (?, ?, ?, ?, ?, ?)`,
		userID, n1, n2, primesCount, executionTimeMs, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("ошибка сохранения истории поиска: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("ошибка получения id записи истории: %w", err)
	}
	return id, nil
}

// ListRecent возвращает до HistoryLimit последних поисков, новые первыми.
// Для пользователя без истории - пустой срез.
func (s *HistoryStore) ListRecent(ctx context.Context, userID int64) ([]models.SearchRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, n1, n2, primes_count, execution_time_ms, search_time
		FROM search_history
		WHERE user_id = ?
		ORDER BY search_time DESC, id DESC
		LIMIT ?`, userID, HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения истории: %w", err)
	}
	defer rows.Close()

	records := make([]models.SearchRecord, 0)
	for rows.Next() {
		var rec models.SearchRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.N1, &rec.N2, &rec.PrimesCount, &rec.ExecutionTimeMs, &rec.SearchTime); err != nil {
			return nil, fmt.Errorf("ошибка чтения записи истории: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка перебора истории: %w", err)
	}
	return records, nil
}

// DeleteAll удаляет всю историю пользователя и возвращает число удалённых строк.
// Повторный вызов успешен и удаляет 0 строк.
func (s *HistoryStore) DeleteAll(ctx context.Context, userID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM search_history WHERE user_id = ?", userID)
	if err != nil {
		return 0, fmt.Errorf("ошибка удаления истории: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("ошибка получения числа удалённых строк: %w", err)
	}
	return n, nil
}
