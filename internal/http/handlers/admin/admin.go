package admin

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/abdifahadi/wamedia-bot/internal/http/middleware"
	"github.com/abdifahadi/wamedia-bot/internal/ratelimit"
	"github.com/abdifahadi/wamedia-bot/internal/store"
	"github.com/abdifahadi/wamedia-bot/internal/utils/response"
)

// Sender delivers an outbound text message. Satisfied by wa.Client.
type Sender interface {
	SendText(ctx context.Context, to, body string) error
}

type sendMessageRequest struct {
	To   string `json:"to" validate:"required,numeric"`
	Body string `json:"body" validate:"required,max=4096"`
}

// SendMessage lets an authenticated operator push a text message to a
// user, for announcements and support replies.
func SendMessage(sender Sender, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		operator, ok := middleware.GetOperatorFromContext(r.Context())
		if !ok {
			response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(errors.New("operator not authenticated")))
			return
		}

		var req sendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(errors.New("empty body")))
				return
			}
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}

		if err := validator.New().Struct(req); err != nil {
			validateErrs := err.(validator.ValidationErrors)
			response.WriteJSON(w, http.StatusBadRequest, response.ValidationError(validateErrs))
			return
		}

		if err := sender.SendText(r.Context(), req.To, req.Body); err != nil {
			logger.Error("admin send failed",
				slog.String("operator", operator),
				slog.String("to", req.To),
				slog.String("error", err.Error()),
			)
			response.WriteJSON(w, http.StatusBadGateway, response.GeneralError(err))
			return
		}

		logger.Info("admin message sent", slog.String("operator", operator), slog.String("to", req.To))
		response.WriteJSON(w, http.StatusOK, response.RequestOK("Message sent successfully", nil))
	}
}

type userResponse struct {
	store.UserProfile
	RemainingDownloads int64 `json:"remaining_downloads"`
}

// GetUser returns the stored profile for a user ID along with their
// remaining download quota for the current window.
func GetUser(sessions *store.SessionStore, limiter *ratelimit.TokenBucket) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := middleware.GetOperatorFromContext(r.Context()); !ok {
			response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(errors.New("operator not authenticated")))
			return
		}

		userID := r.PathValue("id")
		if userID == "" {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(errors.New("missing user id")))
			return
		}

		profile, found, err := sessions.GetUser(r.Context(), userID)
		if err != nil {
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(err))
			return
		}
		if !found {
			response.WriteJSON(w, http.StatusNotFound, response.GeneralError(errors.New("user not found")))
			return
		}

		remaining, err := limiter.GetRemaining(r.Context(), userID, ratelimit.ActionDownload)
		if err != nil {
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(err))
			return
		}

		response.WriteJSON(w, http.StatusOK, response.RequestOK("User fetched successfully", userResponse{
			UserProfile:        profile,
			RemainingDownloads: remaining,
		}))
	}
}

// ResetRateLimit refills a user's download bucket, for support cases
// where a sender got limited by mistake.
func ResetRateLimit(limiter *ratelimit.TokenBucket, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		operator, ok := middleware.GetOperatorFromContext(r.Context())
		if !ok {
			response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(errors.New("operator not authenticated")))
			return
		}

		userID := r.PathValue("id")
		if userID == "" {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(errors.New("missing user id")))
			return
		}

		if err := limiter.Reset(r.Context(), userID, ratelimit.ActionDownload); err != nil {
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(err))
			return
		}

		logger.Info("rate limit reset", slog.String("operator", operator), slog.String("user", userID))
		response.WriteJSON(w, http.StatusOK, response.RequestOK("Rate limit reset", nil))
	}
}
