// Package auth содержит реализации хеширования паролей.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hasher вычисляет и проверяет односторонний хеш пароля.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

// NewHasher возвращает реализацию по имени из конфигурации ("sha256" или "bcrypt").
func NewHasher(name string) (Hasher, error) {
	switch name {
	case "sha256", "":
		return SHA256Hasher{}, nil
	case "bcrypt":
		return BcryptHasher{Cost: bcrypt.DefaultCost}, nil
	default:
		return nil, fmt.Errorf("неизвестный алгоритм хеширования пароля: %q", name)
	}
}

// SHA256Hasher - base64(SHA-256(пароль)) без соли.
// Совместим с уже существующими базами, но слаб против перебора по словарю;
// для новых установок лучше выбирать BcryptHasher.
type SHA256Hasher struct{}

func (SHA256Hasher) Hash(password string) (string, error) {
	sum := sha256.Sum256([]byte(password))
	return base64.StdEncoding.EncodeToString(sum[:]), nil
}

func (h SHA256Hasher) Verify(password, hash string) bool {
	got, _ := h.Hash(password)
	return subtle.ConstantTimeCompare([]byte(got), []byte(hash)) == 1
}

// BcryptHasher хранит соль внутри самого хеша.
type BcryptHasher struct {
	Cost int
}

// Hash возвращает bcrypt-хеш пароля.
func (b BcryptHasher) Hash(password string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("ошибка хеширования пароля: %w", err)
	}
	return string(bytes), nil
}

// Verify сравнивает пароль с хешем из БД.
func (BcryptHasher) Verify(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
