// Package sieve реализует решето Аткина.
//
// Функции пакета чистые: не имеют общего состояния и могут вызываться
// конкурентно. Массив отметок живёт только на время одного вызова.
package sieve

import (
	"context"
	"errors"
	"math"
)

// MaxLimit - наибольшая поддерживаемая верхняя граница (32-битный знаковый диапазон).
// Вычисления ведутся в int, поэтому 4x²+y² не переполняется для любой границы
// не больше MaxLimit.
const MaxLimit = math.MaxInt32

// ErrLimitTooLarge возвращается, если верхняя граница больше MaxLimit.
var ErrLimitTooLarge = errors.New("верхняя граница превышает допустимый максимум")

// Как часто (в итерациях) проверять отмену контекста.
const checkEvery = 1 << 16

// PrimesUpTo возвращает все простые числа от 2 до limit включительно по возрастанию.
// Для limit < 2 возвращается пустой срез.
func PrimesUpTo(ctx context.Context, limit int) ([]int, error) {
	if limit < 2 {
		return []int{}, nil
	}
	if limit > MaxLimit {
		return nil, ErrLimitTooLarge
	}

	isPrime := make([]bool, limit+1)
	isPrime[2] = true
	if limit >= 3 {
		isPrime[3] = true
	}

	sqrtLimit := isqrt(limit)

	// Каждая подходящая пара (x, y) переключает отметку: в конце true
	// остаётся у чисел с нечётным количеством представлений.
	for x := 1; x <= sqrtLimit; x++ {
		if x%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		xx := x * x
		for y := 1; y <= sqrtLimit; y++ {
			yy := y * y

			n := 4*xx + yy
			if n <= limit && (n%12 == 1 || n%12 == 5) {
				isPrime[n] = !isPrime[n]
			}

			n = 3*xx + yy
			if n <= limit && n%12 == 7 {
				isPrime[n] = !isPrime[n]
			}

			if x > y {
				n = 3*xx - yy
				if n <= limit && n%12 == 11 {
					isPrime[n] = !isPrime[n]
				}
			}
		}
	}

	// Убираем числа, кратные квадратам простых.
	for i := 5; i <= sqrtLimit; i++ {
		if !isPrime[i] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		square := i * i
		for j := square; j <= limit; j += square {
			isPrime[j] = false
		}
	}

	// π(x) < 1.26·x/ln(x), этого хватает, чтобы не перевыделять память.
	primes := make([]int, 0, estimateCount(limit))
	for i := 2; i <= limit; i++ {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if isPrime[i] {
			primes = append(primes, i)
		}
	}
	return primes, nil
}

// PrimesInRange возвращает простые p, для которых max(2, from) <= p <= to.
// Для to < 2 возвращается пустой срез.
func PrimesInRange(ctx context.Context, from, to int) ([]int, error) {
	if from < 2 {
		from = 2
	}
	if to < from {
		return []int{}, nil
	}

	all, err := PrimesUpTo(ctx, to)
	if err != nil {
		return nil, err
	}

	// all отсортирован, поэтому достаточно найти первый индекс >= from.
	lo, hi := 0, len(all)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if all[mid] < from {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return all[lo:], nil
}

func isqrt(n int) int {
	r := int(math.Sqrt(float64(n)))
	for r*r > n {
		r--
	}
	for (r+1)*(r+1) <= n {
		r++
	}
	return r
}

func estimateCount(limit int) int {
	if limit < 17 {
		return 8
	}
	return int(1.26*float64(limit)/math.Log(float64(limit))) + 1
}
