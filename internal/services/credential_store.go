package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"atkinsieve/internal/auth"
	"atkinsieve/internal/common"
	"atkinsieve/internal/database"
	"atkinsieve/internal/logging"
)

// TokenRegistry - то, что CredentialStore нужно от реестра сессий.
type TokenRegistry interface {
	Mint(userID int64) (string, error)
	RevokeUser(userID int64) []string
	Restore(userID int64, tokens []string)
	Revoke(token string) bool
}

// CredentialStore управляет учётными записями: регистрация, вход,
// смена пароля и удаление аккаунта.
type CredentialStore struct {
	db        *sql.DB
	hasher    auth.Hasher
	sessions  TokenRegistry
	logger    logging.Logger
	timeout   time.Duration
	dummyHash string
}

func NewCredentialStore(db *sql.DB, hasher auth.Hasher, sessions TokenRegistry, logger logging.Logger, timeout time.Duration) (*CredentialStore, error) {
	// Хеш-заглушка нужен, чтобы вход с неизвестным логином занимал столько же
	// времени, сколько вход с неверным паролем.
	dummy, err := hasher.Hash("atkin-dummy-password")
	if err != nil {
		return nil, fmt.Errorf("ошибка подготовки хешера: %w", err)
	}
	return &CredentialStore{
		db:        db,
		hasher:    hasher,
		sessions:  sessions,
		logger:    logger.With("component", "credentials"),
		timeout:   timeout,
		dummyHash: dummy,
	}, nil
}

// Register создаёт пользователя. В БД хранится только хеш пароля.
func (s *CredentialStore) Register(ctx context.Context, login, password string) (int64, error) {
	if strings.TrimSpace(login) == "" || password == "" {
		return 0, common.NewValidationError("", "Логин и пароль не могут быть пустыми")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	id, err := database.NewUserRepository(s.db).Create(ctx, login, hash)
	if err != nil {
		if errors.Is(err, common.ErrDuplicateLogin) {
			s.logger.Info(ctx, "регистрация отклонена: логин занят", "login", login)
			return 0, err
		}
		s.logger.Error(ctx, "ошибка регистрации", "login", login, "error", err)
		return 0, err
	}

	s.logger.Info(ctx, "пользователь зарегистрирован", "login", login, "user_id", id)
	return id, nil
}

// Authenticate проверяет логин и пароль и выдаёт новый токен.
// Неизвестный логин и неверный пароль неразличимы: оба дают common.ErrUnauthorized.
func (s *CredentialStore) Authenticate(ctx context.Context, login, password string) (string, error) {
	if login == "" || password == "" {
		return "", common.ErrUnauthorized
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	user, err := database.NewUserRepository(s.db).GetByLogin(ctx, login)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		s.logger.Error(ctx, "ошибка получения пользователя", "login", login, "error", err)
		return "", err
	}

	hash := s.dummyHash
	if user != nil {
		hash = user.PasswordHash
	}
	if !s.hasher.Verify(password, hash) || user == nil {
		s.logger.Info(ctx, "неудачная попытка входа", "login", login)
		return "", common.ErrUnauthorized
	}

	// Повторная проверка и выдача токена идут в одной транзакции: пока она
	// держит соединение, DeleteAccount не может удалить этого пользователя.
	var token string
	err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		err := recheckHash(ctx, database.NewUserRepository(tx), user.ID, user.PasswordHash)
		if errors.Is(err, common.ErrWrongPassword) {
			return common.ErrUnauthorized
		}
		if err != nil {
			return err
		}

		token, err = s.sessions.Mint(user.ID)
		if err != nil {
			return fmt.Errorf("ошибка выдачи токена: %w", err)
		}
		return nil
	})
	if err != nil {
		if token != "" {
			s.sessions.Revoke(token)
		}
		if errors.Is(err, common.ErrUnauthorized) {
			s.logger.Info(ctx, "неудачная попытка входа", "login", login)
			return "", err
		}
		s.logger.Error(ctx, "ошибка входа", "login", login, "error", err)
		return "", err
	}

	s.logger.Info(ctx, "пользователь вошёл в систему", "user_id", user.ID)
	return token, nil
}

// ChangePassword меняет пароль после проверки старого и отзывает все
// токены пользователя.
func (s *CredentialStore) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	if oldPassword == "" || newPassword == "" {
		return common.NewValidationError("", "Неверный формат запроса")
	}

	newHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	verified, err := s.verifyPassword(ctx, userID, oldPassword)
	if err != nil {
		s.logRefusal(ctx, "смена пароля не выполнена", userID, err)
		return err
	}

	err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		users := database.NewUserRepository(tx)
		if err := recheckHash(ctx, users, userID, verified); err != nil {
			return err
		}
		return users.UpdatePasswordHash(ctx, userID, newHash)
	})
	if err != nil {
		s.logRefusal(ctx, "смена пароля не выполнена", userID, err)
		return err
	}

	revoked := s.sessions.RevokeUser(userID)
	s.logger.Info(ctx, "пароль изменён", "user_id", userID, "revoked_tokens", len(revoked))
	return nil
}

// DeleteAccount после проверки пароля одной транзакцией удаляет историю
// пользователя, его запись и все его токены. При любой ошибке ничего не меняется.
func (s *CredentialStore) DeleteAccount(ctx context.Context, userID int64, password string) error {
	if password == "" {
		return common.NewValidationError("password", "Неверный формат запроса")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	verified, err := s.verifyPassword(ctx, userID, password)
	if err != nil {
		s.logRefusal(ctx, "удаление аккаунта отменено", userID, err)
		return err
	}

	var (
		revoked []string
		deleted int64
	)
	err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		users := database.NewUserRepository(tx)
		if err := recheckHash(ctx, users, userID, verified); err != nil {
			return err
		}

		var err error
		// 1. история поисков
		deleted, err = database.NewHistoryStore(tx).DeleteAll(ctx, userID)
		if err != nil {
			return err
		}
		// 2. пользователь
		if err := users.Delete(ctx, userID); err != nil {
			return err
		}
		// 3. токены; при неудачном commit они возвращаются ниже
		revoked = s.sessions.RevokeUser(userID)
		return nil
	})
	if err != nil {
		s.sessions.Restore(userID, revoked)
		s.logRefusal(ctx, "удаление аккаунта отменено", userID, err)
		return err
	}

	// Токен мог быть выдан между отзывом и фиксацией: пользователя уже нет, убираем и его.
	revoked = append(revoked, s.sessions.RevokeUser(userID)...)

	s.logger.Info(ctx, "аккаунт удалён", "user_id", userID, "history_rows", deleted, "revoked_tokens", len(revoked))
	return nil
}

// verifyPassword проверяет пароль пользователя вне транзакции, чтобы
// медленный хешер (bcrypt) не занимал единственное соединение с БД.
// Возвращает хеш, с которым совпал пароль.
func (s *CredentialStore) verifyPassword(ctx context.Context, userID int64, password string) (string, error) {
	user, err := database.NewUserRepository(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return "", common.ErrUnauthorized
		}
		return "", err
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return "", common.ErrWrongPassword
	}
	return user.PasswordHash, nil
}

// recheckHash внутри транзакции убеждается, что пользователь ещё существует
// и его хеш не сменился после проверки пароля.
func recheckHash(ctx context.Context, users *database.UserRepository, userID int64, hash string) error {
	user, err := users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrUnauthorized
		}
		return err
	}
	if user.PasswordHash != hash {
		return common.ErrWrongPassword
	}
	return nil
}

// Ожидаемые отказы (неверный пароль) пишем в info, остальное - в error.
func (s *CredentialStore) logRefusal(ctx context.Context, msg string, userID int64, err error) {
	switch {
	case errors.Is(err, common.ErrWrongPassword), errors.Is(err, common.ErrUnauthorized):
		s.logger.Info(ctx, msg, "user_id", userID, "reason", err.Error())
	default:
		s.logger.Error(ctx, msg, "user_id", userID, "error", err)
	}
}
