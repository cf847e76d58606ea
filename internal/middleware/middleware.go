package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"atkinsieve/internal/logging"
)

// Ключи gin.Context и сессии.
const (
	ContextUserID    = "userID"
	ContextRequestID = "requestID"

	// SessionToken - ключ токена в cookie-сессии.
	SessionToken = "token"

	HeaderRequestID = "X-Request-ID"
)

// TokenResolver - то, что нужно middleware от реестра сессий.
type TokenResolver interface {
	Resolve(token string) (int64, bool)
}

// RequestGate пропускает к защищённым маршрутам только запросы с действующим токеном.
type RequestGate struct {
	tokens TokenResolver
	logger logging.Logger
}

func NewRequestGate(tokens TokenResolver, logger logging.Logger) *RequestGate {
	return &RequestGate{tokens: tokens, logger: logger.With("component", "gate")}
}

// RequireAuth ищет токен в заголовке "Authorization: Bearer <token>",
// а если его нет - в cookie-сессии. Без действующего токена запрос
// завершается 401 и дальше не идёт.
func (g *RequestGate) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c.GetHeader("Authorization"))
		if token == "" {
			if v, ok := sessions.Default(c).Get(SessionToken).(string); ok {
				token = v
			}
		}

		userID, ok := g.tokens.Resolve(token)
		if !ok {
			g.logger.Info(c.Request.Context(), "доступ запрещён",
				"path", c.Request.URL.Path, "ip", c.ClientIP(), "has_token", token != "")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Требуется авторизация"})
			return
		}

		c.Set(ContextUserID, userID)
		c.Next()
	}
}

// BearerToken достаёт токен из значения заголовка Authorization.
// Схема сравнивается без учёта регистра.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// UserID возвращает id пользователя, проставленный RequireAuth.
func UserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

// RequestID берёт X-Request-ID из запроса или генерирует новый и
// возвращает его в ответе.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(ContextRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// AccessLog пишет по одной записи на запрос.
func AccessLog(logger logging.Logger) gin.HandlerFunc {
	logger = logger.With("component", "http")
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		args := []any{
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"ip", c.ClientIP(),
			"request_id", c.GetString(ContextRequestID),
		}
		if id, ok := UserID(c); ok {
			args = append(args, "user_id", id)
		}

		ctx := c.Request.Context()
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			logger.Error(ctx, "запрос", args...)
		case status >= http.StatusBadRequest:
			logger.Warn(ctx, "запрос", args...)
		default:
			logger.Info(ctx, "запрос", args...)
		}
	}
}
