package models

import "time"

// User - строка таблицы users.
// `json:"-"` не даёт хешу пароля попасть в ответ клиенту.
type User struct {
	ID           int64     `json:"id"`
	Login        string    `json:"login"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// SearchRecord - сохранённый поиск, строка таблицы search_history.
// После создания не изменяется.
type SearchRecord struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"-"`
	N1              int       `json:"n1"`
	N2              int       `json:"n2"`
	PrimesCount     int       `json:"primes_count"`
	ExecutionTimeMs int64     `json:"execution_time_ms"`
	SearchTime      time.Time `json:"search_time"`
}

// SearchResult - результат одного поиска простых чисел.
type SearchResult struct {
	N1              int       `json:"n1"`
	N2              int       `json:"n2"`
	Primes          []int     `json:"primes"`
	PrimesCount     int       `json:"primesCount"`
	ExecutionTimeMs int64     `json:"executionTimeMs"`
	SearchTime      time.Time `json:"searchTime"`
}

// AlgorithmInfo - описание алгоритма для /algorithm/info.
type AlgorithmInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Features    []string `json:"features"`
}
