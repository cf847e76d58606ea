package session

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// TokenBytes - длина случайной части токена в байтах.
const TokenBytes = 32

// GenerateSecureToken возвращает length случайных байт из криптографического
// источника ОС, закодированных в URL-safe base64 без паддинга.
func GenerateSecureToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		// Если ОС не может дать случайные данные, выдавать токен нельзя
		return "", fmt.Errorf("не удалось сгенерировать случайные байты: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
