package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"atkinsieve/internal/common"
	"atkinsieve/internal/models"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// UserRepository - запросы к таблице users.
type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// Create добавляет пользователя и возвращает его id.
// Занятый логин даёт common.ErrDuplicateLogin, существующая запись не меняется.
func (r *UserRepository) Create(ctx context.Context, login, passwordHash string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO users (login, password_hash, created_at) VALUES (?, ?, ?)",
		login, passwordHash, time.Now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return 0, common.ErrDuplicateLogin
		}
		return 0, fmt.Errorf("ошибка создания пользователя: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("ошибка получения id пользователя: %w", err)
	}
	return id, nil
}

// GetByLogin ищет пользователя по логину (с учётом регистра).
func (r *UserRepository) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, login, password_hash, created_at FROM users WHERE login = ?", login)
	return scanUser(row)
}

// GetByID ищет пользователя по id.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, login, password_hash, created_at FROM users WHERE id = ?", id)
	return scanUser(row)
}

// UpdatePasswordHash заменяет хеш пароля. Нет такого пользователя - common.ErrNotFound.
func (r *UserRepository) UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE users SET password_hash = ? WHERE id = ?", passwordHash, id)
	if err != nil {
		return fmt.Errorf("ошибка обновления пароля: %w", err)
	}
	return expectOneRow(res)
}

// Delete удаляет строку пользователя. История должна быть удалена раньше,
// иначе сработает внешний ключ.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("ошибка удаления пользователя: %w", err)
	}
	return expectOneRow(res)
}

func scanUser(row *sql.Row) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.ID, &u.Login, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка чтения пользователя: %w", err)
	}
	return u, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка получения числа изменённых строк: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
