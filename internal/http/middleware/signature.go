package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/abdifahadi/wamedia-bot/internal/utils/response"
)

// SignatureMiddleware verifies the X-Hub-Signature-256 header Meta attaches
// to webhook deliveries. An empty appSecret disables verification (local
// development). The body is re-buffered so downstream handlers can read it.
func SignatureMiddleware(appSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if appSecret == "" {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(
					errors.New("unreadable body")))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			header := r.Header.Get("X-Hub-Signature-256")
			got := strings.TrimPrefix(header, "sha256=")
			if header == "" || got == header {
				response.WriteJSON(w, http.StatusForbidden, response.GeneralError(
					errors.New("missing signature")))
				return
			}

			mac := hmac.New(sha256.New, []byte(appSecret))
			mac.Write(body)
			want := hex.EncodeToString(mac.Sum(nil))

			if !hmac.Equal([]byte(want), []byte(got)) {
				response.WriteJSON(w, http.StatusForbidden, response.GeneralError(
					errors.New("invalid signature")))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
