// Package api is the operational HTTP surface of the judge service.
package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"cryptoj/internal/judge/model"
	appErr "cryptoj/pkg/errors"
)

// SubmissionStore is the persistence surface the handlers need.
type SubmissionStore interface {
	FindSubmission(ctx context.Context, subID int64) (*model.Submission, error)
	MarkPending(ctx context.Context, subID int64) error
}

// Submitter enqueues fresh submissions.
type Submitter interface {
	Submit(ctx context.Context, uid, expID int64, language, code string) (int64, error)
}

// Waker nudges the judge loop.
type Waker interface {
	Wake()
}

// Handler serves the judge HTTP API.
type Handler struct {
	store  SubmissionStore
	intake Submitter
	waker  Waker
	events gin.HandlerFunc
}

// NewHandler creates a Handler. events serves the websocket stream and may
// be nil when the stream is disabled.
func NewHandler(store SubmissionStore, intake Submitter, waker Waker, events gin.HandlerFunc) *Handler {
	return &Handler{store: store, intake: intake, waker: waker, events: events}
}

// Register mounts the routes.
func (h *Handler) Register(router *gin.Engine) {
	router.GET("/healthz", h.health)

	api := router.Group("/api/judge")
	api.GET("/submissions/:subid", h.getSubmission)
	api.POST("/submissions/:subid/rejudge", h.rejudge)
	api.POST("/experiments/:expid/submissions", h.submit)
	if h.events != nil {
		api.GET("/events", h.events)
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) getSubmission(c *gin.Context) {
	subID, ok := pathID(c, "subid")
	if !ok {
		return
	}
	sub, err := h.store.FindSubmission(c.Request.Context(), subID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (h *Handler) rejudge(c *gin.Context) {
	subID, ok := pathID(c, "subid")
	if !ok {
		return
	}
	if err := h.store.MarkPending(c.Request.Context(), subID); err != nil {
		respondError(c, err)
		return
	}
	h.waker.Wake()
	c.JSON(http.StatusAccepted, gin.H{"subid": subID, "pending": true})
}

type submitRequest struct {
	UID      int64  `json:"uid" binding:"required"`
	Language string `json:"language" binding:"required"`
	Code     string `json:"code" binding:"required"`
}

func (h *Handler) submit(c *gin.Context) {
	expID, ok := pathID(c, "expid")
	if !ok {
		return
	}
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, appErr.Wrap(err, appErr.InvalidParams))
		return
	}
	subID, err := h.intake.Submit(c.Request.Context(), req.UID, expID, req.Language, req.Code)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"subid": subID, "pending": true})
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, appErr.Newf(appErr.InvalidParams, "invalid %s", name))
		return 0, false
	}
	return id, true
}

func respondError(c *gin.Context, err error) {
	code := appErr.GetCode(err)
	c.JSON(code.HTTPStatus(), gin.H{"code": code, "message": err.Error()})
}
