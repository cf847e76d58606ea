// Package session хранит выданные bearer-токены в памяти процесса.
//
// Реестр создаётся при старте сервера и закрывается при остановке;
// перезапуск процесса делает все токены недействительными.
package session

import (
	"errors"
	"sync"
)

// ErrClosed возвращается при обращении к закрытому реестру.
var ErrClosed = errors.New("реестр сессий закрыт")

// Generator выдаёт новое значение токена.
type Generator func() (string, error)

// Option настраивает Registry.
type Option func(*Registry)

// WithGenerator подменяет генератор токенов (например, в тестах).
func WithGenerator(g Generator) Option {
	return func(r *Registry) {
		r.generate = g
	}
}

// Registry - соответствие "токен -> id пользователя".
// Все операции выполняются под одной блокировкой.
type Registry struct {
	mu       sync.RWMutex
	tokens   map[string]int64
	byUser   map[int64]map[string]struct{}
	generate Generator
	closed   bool
}

// New создаёт пустой реестр.
func New(opts ...Option) *Registry {
	r := &Registry{
		tokens: make(map[string]int64),
		byUser: make(map[int64]map[string]struct{}),
		generate: func() (string, error) {
			return GenerateSecureToken(TokenBytes)
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Mint выдаёт новый токен пользователю userID. У пользователя может быть
// сколько угодно одновременно действующих токенов.
func (r *Registry) Mint(userID int64) (string, error) {
	// Генерация не требует блокировки.
	token, err := r.generate()
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return "", ErrClosed
	}
	if _, exists := r.tokens[token]; exists {
		return "", errors.New("сгенерирован уже существующий токен")
	}
	r.add(userID, token)
	return token, nil
}

// Resolve возвращает id владельца токена. ok == false для неизвестного
// или отозванного токена.
func (r *Registry) Resolve(token string) (userID int64, ok bool) {
	if token == "" {
		return 0, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return 0, false
	}
	userID, ok = r.tokens[token]
	return userID, ok
}

// RevokeUser отзывает все токены пользователя и возвращает их,
// чтобы вызывающий мог вернуть их через Restore при откате транзакции.
func (r *Registry) RevokeUser(userID int64) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.byUser[userID]
	if len(set) == 0 {
		return nil
	}

	revoked := make([]string, 0, len(set))
	for token := range set {
		delete(r.tokens, token)
		revoked = append(revoked, token)
	}
	delete(r.byUser, userID)
	return revoked
}

// Revoke отзывает один токен. false, если токен не был действующим.
func (r *Registry) Revoke(token string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.tokens[token]
	if !ok {
		return false
	}
	delete(r.tokens, token)
	if set := r.byUser[userID]; set != nil {
		delete(set, token)
		if len(set) == 0 {
			delete(r.byUser, userID)
		}
	}
	return true
}

// Restore возвращает ранее отозванные токены пользователю.
func (r *Registry) Restore(userID int64, tokens []string) {
	if len(tokens) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	for _, token := range tokens {
		if _, exists := r.tokens[token]; exists {
			continue
		}
		r.add(userID, token)
	}
}

// Len - количество действующих токенов.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tokens)
}

// Close сбрасывает все токены. После Close реестр не выдаёт и не принимает токены.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	r.tokens = make(map[string]int64)
	r.byUser = make(map[int64]map[string]struct{})
}

// add вызывается под r.mu.
func (r *Registry) add(userID int64, token string) {
	r.tokens[token] = userID
	set, ok := r.byUser[userID]
	if !ok {
		set = make(map[string]struct{})
		r.byUser[userID] = set
	}
	set[token] = struct{}{}
}
