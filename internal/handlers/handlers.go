package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/slothbucket/internal/auth"
	"github.com/example/slothbucket/internal/classifier"
	"github.com/example/slothbucket/internal/httperr"
	"github.com/example/slothbucket/internal/usecase"
)

// ClassifyService is the slice of pipeline functionality the HTTP layer needs.
type ClassifyService interface {
	ClassifyImage(ctx context.Context, userID, payload string) (*usecase.ClassifyOutcome, error)
	ClassifyImageEphemeral(ctx context.Context, payload string) (*classifier.Result, error)
	ImageLibrary(ctx context.Context, userID string) ([]usecase.LibraryImage, error)
}

type classifyRequest struct {
	Base64 string `json:"base64"`
	UserID string `json:"user_id"`
}

type classifyResponse struct {
	ImageLabels      []classifier.Label    `json:"image_labels"`
	SlothCheck       classifier.SlothCheck `json:"sloth_check"`
	PersistenceError string                `json:"persistence_error,omitempty"`
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, svc ClassifyService, authMiddleware gin.HandlerFunc, logger *zap.Logger) {
	logger = logger.Named("handlers")

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST("/classify", authMiddleware, func(c *gin.Context) {
		var req classifyRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Base64 == "" || req.UserID == "" {
			writeError(c, logger, httperr.IncompleteRequest())
			return
		}

		outcome, err := svc.ClassifyImage(c.Request.Context(), req.UserID, req.Base64)
		if err != nil {
			writeError(c, logger, err)
			return
		}

		resp := classifyResponse{
			ImageLabels: outcome.Result.ImageLabels,
			SlothCheck:  outcome.Result.SlothCheck,
		}
		if outcome.PersistErr != nil {
			resp.PersistenceError = httperr.MessageOf(outcome.PersistErr)
		}
		c.JSON(http.StatusOK, resp)
	})

	router.POST("/classify-demo", func(c *gin.Context) {
		var req classifyRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Base64 == "" {
			writeError(c, logger, httperr.IncompleteRequest())
			return
		}

		result, err := svc.ClassifyImageEphemeral(c.Request.Context(), req.Base64)
		if err != nil {
			writeError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, classifyResponse{
			ImageLabels: result.ImageLabels,
			SlothCheck:  result.SlothCheck,
		})
	})

	router.GET("/images/:userId", authMiddleware, func(c *gin.Context) {
		userID := c.Param("userId")
		subject, ok := auth.GetUserID(c.Request.Context())
		if !ok || subject != userID {
			writeError(c, logger, httperr.FailedAuthentication(nil))
			return
		}

		images, err := svc.ImageLibrary(c.Request.Context(), userID)
		if err != nil {
			writeError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, images)
	})
}

// writeError logs full server-side detail and sends only the status and the
// client-safe message. System errors, paths, and causes stay out of the body.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	status := httperr.StatusOf(err)
	logger.Error("request failed",
		zap.String("path", c.FullPath()),
		zap.Int("status", status),
		zap.Error(err))
	c.JSON(status, gin.H{"status": status, "error": httperr.MessageOf(err)})
}
