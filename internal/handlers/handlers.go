package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"atkinsieve/internal/common"
	"atkinsieve/internal/logging"
	"atkinsieve/internal/middleware"
	"atkinsieve/internal/models"
	"atkinsieve/internal/services"
)

// Формат search_time в ответе /history/get (местное время сервера).
const historyTimeLayout = "2006-01-02 15:04:05"

const (
	msgBadRequest  = "Неверный формат запроса"
	msgInternal    = "Внутренняя ошибка сервера"
	msgSearchLimit = "Вычисление заняло слишком много времени, уменьшите диапазон"
)

// Handler обслуживает HTTP API. Зависимости передаются при создании.
type Handler struct {
	creds   *services.CredentialStore
	search  *services.SearchService
	history *services.HistoryService
	logger  logging.Logger
	// base - логгер без полей компонента, из него строится журнал запросов.
	base logging.Logger
}

func New(creds *services.CredentialStore, search *services.SearchService, history *services.HistoryService, logger logging.Logger) *Handler {
	return &Handler{
		creds:   creds,
		search:  search,
		history: history,
		logger:  logger.With("component", "handlers"),
		base:    logger,
	}
}

type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type deleteAccountRequest struct {
	Password string `json:"password"`
}

type rangeRequest struct {
	N1 int `json:"n1"`
	N2 int `json:"n2"`
}

// saveSearchRequest - тело /history/save. Все поля необязательные на уровне
// JSON, наличие проверяется в toSaveSearch. Время вычисления берётся из
// executionTimeMs, а если его нет - из executionTime.
type saveSearchRequest struct {
	N1              *int   `json:"n1"`
	N2              *int   `json:"n2"`
	PrimesCount     *int   `json:"primesCount"`
	ExecutionTimeMs *int64 `json:"executionTimeMs"`
	ExecutionTime   *int64 `json:"executionTime"`
}

func (r saveSearchRequest) toSaveSearch() (services.SaveSearch, string) {
	switch {
	case r.N1 == nil:
		return services.SaveSearch{}, fieldProblem("n1")
	case r.N2 == nil:
		return services.SaveSearch{}, fieldProblem("n2")
	case r.PrimesCount == nil:
		return services.SaveSearch{}, fieldProblem("primesCount")
	}

	ms := r.ExecutionTimeMs
	if ms == nil {
		ms = r.ExecutionTime
	}
	if ms == nil {
		return services.SaveSearch{}, "Отсутствует свойство executionTimeMs"
	}

	return services.SaveSearch{
		N1:              *r.N1,
		N2:              *r.N2,
		PrimesCount:     *r.PrimesCount,
		ExecutionTimeMs: *ms,
	}, ""
}

func fieldProblem(field string) string {
	return "Отсутствует или неверное свойство " + field
}

// saveDecodeProblem описывает ошибку разбора тела /history/save.
// Поле неверного типа называется по имени, остальное - общий ответ.
func saveDecodeProblem(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		switch typeErr.Field {
		case "n1", "n2", "primesCount":
			return fieldProblem(typeErr.Field)
		case "executionTimeMs", "executionTime":
			return fieldProblem("executionTimeMs")
		}
	}
	return msgBadRequest
}

type historyItem struct {
	ID              int64  `json:"id"`
	N1              int    `json:"n1"`
	N2              int    `json:"n2"`
	PrimesCount     int    `json:"primes_count"`
	ExecutionTimeMs int64  `json:"execution_time_ms"`
	SearchTime      string `json:"search_time"`
}

func toHistoryItems(recs []models.SearchRecord) []historyItem {
	items := make([]historyItem, 0, len(recs))
	for _, r := range recs {
		items = append(items, historyItem{
			ID:              r.ID,
			N1:              r.N1,
			N2:              r.N2,
			PrimesCount:     r.PrimesCount,
			ExecutionTimeMs: r.ExecutionTimeMs,
			SearchTime:      r.SearchTime.Local().Format(historyTimeLayout),
		})
	}
	return items
}

// Index отдаёт название сервиса.
func (h *Handler) Index(c *gin.Context) {
	c.String(http.StatusOK, "Решето Аткина - API для поиска простых чисел")
}

// AlgorithmInfo отдаёт описание алгоритма.
func (h *Handler) AlgorithmInfo(c *gin.Context) {
	c.JSON(http.StatusOK, services.AlgorithmInfo())
}

// Register - POST /auth/register.
func (h *Handler) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, msgBadRequest)
		return
	}

	if _, err := h.creds.Register(c.Request.Context(), req.Login, req.Password); err != nil {
		if errors.Is(err, common.ErrDuplicateLogin) {
			c.JSON(http.StatusConflict, gin.H{"error": "Пользователь с таким логином уже существует"})
			return
		}
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Пользователь зарегистрирован"})
}

// Login - POST /auth/login. Токен возвращается в теле и дублируется в cookie-сессии.
func (h *Handler) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, msgBadRequest)
		return
	}

	token, err := h.creds.Authenticate(c.Request.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, common.ErrUnauthorized) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Неверный логин или пароль"})
			return
		}
		h.respondError(c, err)
		return
	}

	session := sessions.Default(c)
	session.Set(middleware.SessionToken, token)
	if err := session.Save(); err != nil {
		// Клиенту с заголовком Authorization cookie не нужна, поэтому вход не отменяем.
		h.logger.Warn(c.Request.Context(), "ошибка сохранения сессии", "error", err)
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

// ChangePassword - POST /auth/change-password.
func (h *Handler) ChangePassword(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		unauthorized(c)
		return
	}

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, msgBadRequest)
		return
	}

	err := h.creds.ChangePassword(c.Request.Context(), userID, req.OldPassword, req.NewPassword)
	if err != nil {
		if errors.Is(err, common.ErrWrongPassword) {
			badRequest(c, "Неверный старый пароль")
			return
		}
		h.respondError(c, err)
		return
	}

	h.clearSession(c)
	c.JSON(http.StatusOK, gin.H{"message": "Пароль успешно изменен"})
}

// DeleteAccount - POST /auth/delete-account.
func (h *Handler) DeleteAccount(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		unauthorized(c)
		return
	}

	var req deleteAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, msgBadRequest)
		return
	}

	if err := h.creds.DeleteAccount(c.Request.Context(), userID, req.Password); err != nil {
		if errors.Is(err, common.ErrWrongPassword) {
			badRequest(c, "Неверный пароль")
			return
		}
		h.respondError(c, err)
		return
	}

	h.clearSession(c)
	c.JSON(http.StatusOK, gin.H{"message": "Аккаунт успешно удален"})
}

// SearchRange - GET /atkin/range?n1=..&n2=.. без авторизации.
func (h *Handler) SearchRange(c *gin.Context) {
	n1, err1 := strconv.Atoi(c.Query("n1"))
	n2, err2 := strconv.Atoi(c.Query("n2"))
	if err1 != nil || err2 != nil {
		badRequest(c, "N1 и N2 должны быть натуральными числами")
		return
	}
	h.runSearch(c, n1, n2)
}

// Find - POST /atkin/find для авторизованных клиентов.
func (h *Handler) Find(c *gin.Context) {
	var req rangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, msgBadRequest)
		return
	}
	h.runSearch(c, req.N1, req.N2)
}

func (h *Handler) runSearch(c *gin.Context, n1, n2 int) {
	res, err := h.search.Search(c.Request.Context(), n1, n2)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// SaveHistory - POST /history/save.
func (h *Handler) SaveHistory(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		unauthorized(c)
		return
	}

	var req saveSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, saveDecodeProblem(err))
		return
	}
	in, problem := req.toSaveSearch()
	if problem != "" {
		badRequest(c, problem)
		return
	}

	if _, err := h.history.Save(c.Request.Context(), userID, in); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Поиск сохранен в историю"})
}

// GetHistory - POST /history/get. Пустая история отдаётся как [].
func (h *Handler) GetHistory(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		unauthorized(c)
		return
	}

	recs, err := h.history.Recent(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toHistoryItems(recs))
}

// DeleteHistory - POST /history/delete-all.
func (h *Handler) DeleteHistory(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		unauthorized(c)
		return
	}

	if err := h.history.Clear(c.Request.Context(), userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось удалить историю поисков"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Вся история поисков успешно удалена"})
}

// clearSession убирает токен из cookie после того, как он перестал действовать.
func (h *Handler) clearSession(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		h.logger.Warn(c.Request.Context(), "ошибка очистки сессии", "error", err)
	}
}

// respondError переводит ошибку сервисов в HTTP-ответ.
func (h *Handler) respondError(c *gin.Context, err error) {
	var verr *common.ValidationError
	switch {
	case errors.As(err, &verr):
		badRequest(c, verr.Message)
	case errors.Is(err, common.ErrValidation):
		badRequest(c, err.Error())
	case errors.Is(err, common.ErrUnauthorized):
		unauthorized(c)
	case errors.Is(err, common.ErrDuplicateLogin):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, common.ErrWrongPassword):
		badRequest(c, err.Error())
	case errors.Is(err, services.ErrSearchTimeout):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": msgSearchLimit})
	default:
		h.logger.Error(c.Request.Context(), "ошибка обработки запроса",
			"path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternal})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func unauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{"error": "Требуется авторизация"})
}
