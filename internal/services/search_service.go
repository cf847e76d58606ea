package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"atkinsieve/internal/common"
	"atkinsieve/internal/logging"
	"atkinsieve/internal/models"
	"atkinsieve/internal/sieve"
)

// ErrSearchTimeout - поиск не уложился в отведённое время.
var ErrSearchTimeout = errors.New("превышено время вычисления")

// ValidateRange проверяет диапазон поиска: оба конца натуральные, n1 < n2,
// n2 не больше maxN2.
func ValidateRange(n1, n2, maxN2 int) error {
	if n1 <= 0 || n2 <= 0 {
		return common.NewValidationError("", "N1 и N2 должны быть натуральными числами")
	}
	if n1 >= n2 {
		return common.NewValidationError("", "N1 должно быть меньше N2")
	}
	if n2 > maxN2 {
		return common.NewValidationError("n2", fmt.Sprintf("N2 не может быть больше %d", maxN2))
	}
	return nil
}

// SearchService выполняет поиск простых чисел решетом Аткина.
type SearchService struct {
	maxN2   int
	timeout time.Duration
	logger  logging.Logger
	now     func() time.Time
}

func NewSearchService(maxN2 int, timeout time.Duration, logger logging.Logger) *SearchService {
	if maxN2 > sieve.MaxLimit {
		maxN2 = sieve.MaxLimit
	}
	return &SearchService{
		maxN2:   maxN2,
		timeout: timeout,
		logger:  logger.With("component", "search"),
		now:     time.Now,
	}
}

// MaxN2 - наибольшая допустимая верхняя граница.
func (s *SearchService) MaxN2() int {
	return s.maxN2
}

// Search находит простые числа в [n1, n2] и замеряет время вычисления.
func (s *SearchService) Search(ctx context.Context, n1, n2 int) (*models.SearchResult, error) {
	if err := ValidateRange(n1, n2, s.maxN2); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	primes, err := sieve.PrimesInRange(ctx, n1, n2)
	elapsed := time.Since(start)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn(ctx, "поиск прерван по таймауту", "n1", n1, "n2", n2, "elapsed", elapsed)
			return nil, ErrSearchTimeout
		}
		return nil, err
	}

	// Поиск на маленьком диапазоне укладывается в доли миллисекунды;
	// в ответе время не бывает меньше 1 мс.
	ms := elapsed.Milliseconds()
	if ms < 1 {
		ms = 1
	}

	s.logger.Debug(ctx, "поиск выполнен", "n1", n1, "n2", n2, "count", len(primes), "ms", ms)

	return &models.SearchResult{
		N1:              n1,
		N2:              n2,
		Primes:          primes,
		PrimesCount:     len(primes),
		ExecutionTimeMs: ms,
		SearchTime:      s.now(),
	}, nil
}

// AlgorithmInfo - описание алгоритма для клиентов.
func AlgorithmInfo() models.AlgorithmInfo {
	return models.AlgorithmInfo{
		Name:        "Решето Аткина",
		Description: "Современный алгоритм для поиска всех простых чисел",
		Features: []string{
			"Использует квадратичные формы",
			"Эффективен для больших чисел",
			"Сложность O(N / log log N)",
		},
	}
}
