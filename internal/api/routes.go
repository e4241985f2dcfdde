// Package api exposes the speaker operations over HTTP for an out-of-process
// conversational engine: playback, wake state, assistant delegation,
// microphone, boot partition, device identity and the conversation log.
package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/openmico/speakerbridge/domain/entities"
	"github.com/openmico/speakerbridge/domain/repositories"
	"github.com/openmico/speakerbridge/internal/auth"
	"github.com/openmico/speakerbridge/usecase/speaker"
)

// InitRoutes initializes all API routes. conversations may be nil when the
// conversation log is not configured.
func InitRoutes(
	e *echo.Echo,
	controller *speaker.Controller,
	conversations repositories.ConversationRepository,
	authn *auth.Authenticator,
	logger *zap.Logger,
) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "speakerbridge",
		})
	})

	v1 := e.Group("/api/v1", bearerAuth(authn, logger))

	sp := v1.Group("/speaker")
	sp.POST("/play", func(c echo.Context) error { return play(c, controller) })
	sp.POST("/wake", func(c echo.Context) error { return wake(c, controller) })
	sp.POST("/ask", func(c echo.Context) error { return ask(c, controller) })
	sp.POST("/abort", func(c echo.Context) error { return abort(c, controller) })
	sp.GET("/status", func(c echo.Context) error { return status(c, controller) })
	sp.GET("/device", func(c echo.Context) error { return device(c, controller) })
	sp.GET("/mic", func(c echo.Context) error { return getMic(c, controller) })
	sp.PUT("/mic", func(c echo.Context) error { return setMic(c, controller) })
	sp.GET("/boot", func(c echo.Context) error { return getBoot(c, controller) })
	sp.PUT("/boot", func(c echo.Context) error { return setBoot(c, controller) })

	v1.GET("/conversations", func(c echo.Context) error {
		return recentConversations(c, conversations, logger)
	})
}

// bearerAuth validates the Authorization header against the controller role.
// With no signing secret configured, authentication is disabled.
func bearerAuth(authn *auth.Authenticator, logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !authn.Enabled() {
				return next(c)
			}

			var token string
			authHeader := c.Request().Header.Get("Authorization")
			if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
				token = authHeader[7:]
			}
			if token == "" {
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "missing_token",
					Message: "Bearer token is required",
				})
			}

			claims, err := authn.ValidateToken(token)
			if err != nil {
				logger.Warn("Rejected control API token", zap.Error(err))
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "invalid_token",
					Message: "Invalid or expired token",
				})
			}
			if claims.Role != auth.RoleController {
				return c.JSON(http.StatusForbidden, ErrorResponse{
					Error:   "invalid_role",
					Message: "Token does not grant control access",
				})
			}
			return next(c)
		}
	}
}

func play(c echo.Context, controller *speaker.Controller) error {
	var req PlayRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if (req.Text == "") == (req.URL == "") {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Exactly one of text or url is required",
		})
	}

	ok := controller.Play(c.Request().Context(), speaker.PlayRequest{
		Text:     req.Text,
		URL:      req.URL,
		Blocking: req.Blocking,
	})
	return c.JSON(http.StatusOK, SuccessResponse{Success: ok})
}

func wake(c echo.Context, controller *speaker.Controller) error {
	var req WakeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	ok := controller.WakeUp(c.Request().Context(), req.Awake, req.Silent)
	return c.JSON(http.StatusOK, SuccessResponse{Success: ok})
}

func ask(c echo.Context, controller *speaker.Controller) error {
	var req AskRequest
	if err := c.Bind(&req); err != nil || req.Text == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Text is required",
		})
	}
	ok := controller.AskXiaoAI(c.Request().Context(), req.Text, req.Silent)
	return c.JSON(http.StatusOK, SuccessResponse{Success: ok})
}

func abort(c echo.Context, controller *speaker.Controller) error {
	ok := controller.AbortXiaoAI(c.Request().Context())
	return c.JSON(http.StatusOK, SuccessResponse{Success: ok})
}

func status(c echo.Context, controller *speaker.Controller) error {
	sync, _ := strconv.ParseBool(c.QueryParam("sync"))
	st := controller.GetPlaying(c.Request().Context(), sync)
	return c.JSON(http.StatusOK, StatusResponse{Status: string(st)})
}

func device(c echo.Context, controller *speaker.Controller) error {
	return c.JSON(http.StatusOK, controller.GetDevice(c.Request().Context()))
}

func getMic(c echo.Context, controller *speaker.Controller) error {
	on, known := controller.GetMic(c.Request().Context())
	return c.JSON(http.StatusOK, MicResponse{On: on, Known: known})
}

func setMic(c echo.Context, controller *speaker.Controller) error {
	var req MicRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	ok := controller.SetMic(c.Request().Context(), req.On)
	return c.JSON(http.StatusOK, SuccessResponse{Success: ok})
}

func getBoot(c echo.Context, controller *speaker.Controller) error {
	slot, ok := controller.GetBoot(c.Request().Context())
	if !ok {
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "boot_query_failed",
			Message: "Boot partition could not be determined",
		})
	}
	return c.JSON(http.StatusOK, BootResponse{Slot: string(slot)})
}

func setBoot(c echo.Context, controller *speaker.Controller) error {
	var req BootRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	slot := entities.BootSlot(req.Slot)
	if !entities.ValidBootSlot(slot) {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Slot must be boot0 or boot1",
		})
	}
	ok := controller.SetBoot(c.Request().Context(), slot)
	return c.JSON(http.StatusOK, SuccessResponse{Success: ok})
}

func recentConversations(c echo.Context, conversations repositories.ConversationRepository, logger *zap.Logger) error {
	if conversations == nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_configured",
			Message: "Conversation log storage is not configured",
		})
	}

	deviceID := c.QueryParam("device_id")
	if deviceID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "device_id is required",
		})
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	entries, err := conversations.Recent(c.Request().Context(), deviceID, limit)
	if err != nil {
		logger.Error("Failed to query conversation log", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to query conversation log",
		})
	}
	return c.JSON(http.StatusOK, entries)
}
