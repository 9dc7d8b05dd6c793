// Package handler exposes the newsletter endpoints over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"newsletter/internal/newsletter/models"
	"newsletter/internal/platform/middleware"
	dErrors "newsletter/pkg/domain-errors"
	"newsletter/pkg/email"
	"newsletter/pkg/platform/httputil"
)

const maxBodyBytes = 4 << 10

// Route paths served by Register.
const (
	SubscribePath   = "/api/newsletter/subscribe"
	UnsubscribePath = "/api/newsletter/unsubscribe"
	MailingListPath = "/api/newsletter/mailing-list"
)

// Service defines the newsletter operations the handler depends on.
type Service interface {
	Subscribe(ctx context.Context, email string) (*models.Subscription, error)
	Unsubscribe(ctx context.Context, email string) (string, error)
	List(ctx context.Context) ([]*models.Subscription, error)
}

// Handler serves the newsletter API.
type Handler struct {
	logger  *slog.Logger
	service Service
	// mutating wraps the POST routes, typically with a rate limiter.
	mutating []func(http.Handler) http.Handler
}

// New creates a newsletter Handler. mutating middleware applies to the
// subscribe and unsubscribe routes only.
func New(service Service, logger *slog.Logger, mutating ...func(http.Handler) http.Handler) *Handler {
	return &Handler{logger: logger, service: service, mutating: mutating}
}

// Register mounts the newsletter routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mutating...)
		r.Post(SubscribePath, h.HandleSubscribe)
		r.Post(UnsubscribePath, h.HandleUnsubscribe)
	})
	r.Get(MailingListPath, h.HandleMailingList)
}

// HandleSubscribe adds the posted email to the mailing list.
func (h *Handler) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	sub, err := h.service.Subscribe(ctx, req.Email)
	if err != nil {
		h.writeServiceError(ctx, w, "subscribe failed", err)
		return
	}

	h.logger.InfoContext(ctx, "newsletter subscription added",
		"request_id", requestID,
		"email", sub.Email,
	)
	httputil.WriteText(w, http.StatusOK, fmt.Sprintf("Subscribed to newsletter %s", sub.Email))
}

// HandleUnsubscribe removes the posted email from the mailing list.
func (h *Handler) HandleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	addr, err := h.service.Unsubscribe(ctx, req.Email)
	if err != nil {
		h.writeServiceError(ctx, w, "unsubscribe failed", err)
		return
	}

	h.logger.InfoContext(ctx, "newsletter subscription removed",
		"request_id", requestID,
		"email", addr,
	)
	httputil.WriteText(w, http.StatusOK, fmt.Sprintf("Unsubscribed from newsletter %s", addr))
}

// HandleMailingList returns every subscribed email as a JSON array.
func (h *Handler) HandleMailingList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	subs, err := h.service.List(ctx)
	if err != nil {
		h.writeServiceError(ctx, w, "list mailing list failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ToResponses(subs))
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (*models.SubscriptionRequest, bool) {
	ctx := r.Context()
	var req models.SubscriptionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid newsletter request body",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return nil, false
	}
	// Shape check only; the service applies the case policy.
	req.Normalize(email.CasePreserve)
	if err := req.Validate(); err != nil {
		h.logger.WarnContext(ctx, "invalid newsletter email",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid email"))
		return nil, false
	}
	return &req, true
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	requestID := middleware.GetRequestID(ctx)
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestID,
			"error", err.Error(),
		)
	} else {
		h.logger.WarnContext(ctx, msg,
			"request_id", requestID,
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}
