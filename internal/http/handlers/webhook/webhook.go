package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/abdifahadi/wamedia-bot/internal/utils/response"
)

// processTimeout bounds a single message's background processing,
// including a full download cycle.
const processTimeout = 15 * time.Minute

// MessageHandler processes one inbound text message. Satisfied by
// bot.Service.
type MessageHandler interface {
	HandleMessage(ctx context.Context, from, name, text string)
}

// notification mirrors the Meta webhook payload shape down to the fields
// the bot reads.
type notification struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Contacts []struct {
					WaID    string `json:"wa_id"`
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
				} `json:"contacts"`
				Messages []struct {
					From string `json:"from"`
					ID   string `json:"id"`
					Type string `json:"type"`
					Text struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// Verify handles the webhook subscription handshake. Meta sends a GET
// with hub.mode, hub.verify_token and hub.challenge; the challenge must
// be echoed back as plain text.
func Verify(verifyToken string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mode := r.URL.Query().Get("hub.mode")
		token := r.URL.Query().Get("hub.verify_token")
		challenge := r.URL.Query().Get("hub.challenge")

		if mode == "" || token == "" {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(errors.New("missing hub parameters")))
			return
		}
		if mode != "subscribe" || token != verifyToken {
			logger.Warn("webhook verification rejected", slog.String("mode", mode))
			response.WriteJSON(w, http.StatusForbidden, response.GeneralError(errors.New("verification token mismatch")))
			return
		}

		logger.Info("webhook verified")
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(challenge))
	}
}

// Receive accepts inbound message notifications. Processing happens in
// the background and the endpoint always acknowledges with 200, so Meta
// never retries a delivery because a download is slow.
func Receive(handler MessageHandler, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload notification
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			logger.Warn("undecodable webhook payload", slog.String("error", err.Error()))
			ack(w)
			return
		}

		for _, entry := range payload.Entry {
			for _, change := range entry.Changes {
				value := change.Value

				names := make(map[string]string, len(value.Contacts))
				for _, c := range value.Contacts {
					names[c.WaID] = c.Profile.Name
				}

				for _, msg := range value.Messages {
					if msg.Type != "text" || msg.Text.Body == "" {
						continue
					}
					name := names[msg.From]
					if name == "" {
						name = "User"
					}

					logger.Info("inbound message",
						slog.String("from", msg.From),
						slog.String("id", msg.ID),
					)

					go func(from, name, body string) {
						ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
						defer cancel()
						handler.HandleMessage(ctx, from, name, body)
					}(msg.From, name, msg.Text.Body)
				}
			}
		}

		ack(w)
	}
}

func ack(w http.ResponseWriter) {
	response.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
