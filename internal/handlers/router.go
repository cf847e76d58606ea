package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"atkinsieve/internal/middleware"
)

// Имя cookie, в которой хранится сессия с токеном.
const sessionCookieName = "atkin_session"

// RouterConfig - параметры, нужные для сборки роутера.
type RouterConfig struct {
	CookieSecret string
	// SecureCookie включает флаг Secure: cookie уходит только по HTTPS.
	SecureCookie bool
	// TrustedProxies - адреса прокси, чьим X-Forwarded-For можно верить.
	// Пустой список: IP клиента берётся из соединения.
	TrustedProxies []string
}

// NewRouter собирает gin.Engine со всеми маршрутами API.
func NewRouter(h *Handler, gate *middleware.RequestGate, cfg RouterConfig) (*gin.Engine, error) {
	router := gin.New()
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("ошибка установки доверенных прокси: %w", err)
	}
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.AccessLog(h.base))

	store := cookie.NewStore([]byte(cfg.CookieSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   cfg.SecureCookie,
		// Cookie заменяет заголовок Authorization, поэтому с чужих сайтов
		// она не отправляется вовсе.
		SameSite: http.SameSiteStrictMode,
	})
	router.Use(sessions.Sessions(sessionCookieName, store))

	// Маршруты без авторизации.
	router.GET("/", h.Index)
	router.GET("/algorithm/info", h.AlgorithmInfo)
	router.GET("/atkin/range", h.SearchRange)
	router.POST("/auth/register", h.Register)
	router.POST("/auth/login", h.Login)

	protected := router.Group("/")
	protected.Use(gate.RequireAuth())
	{
		protected.POST("/auth/change-password", h.ChangePassword)
		protected.POST("/auth/delete-account", h.DeleteAccount)
		protected.POST("/atkin/find", h.Find)
		protected.POST("/history/save", h.SaveHistory)
		protected.POST("/history/get", h.GetHistory)
		protected.POST("/history/delete-all", h.DeleteHistory)
	}

	return router, nil
}
