package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/go-faster/errors"
)

type ctxKey int

const userIDKey ctxKey = iota

// UserID returns the authenticated user ID stored by RequireAPIKey.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// hashKey derives the stored digest for a raw API key. Keys are never
// persisted in clear text.
func (h *Handler) hashKey(raw string) string {
	mac := hmac.New(sha256.New, h.pepper)
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

func (h *Handler) resolveUser(r *http.Request) (string, error) {
	raw := r.Header.Get("api_key")
	if raw == "" {
		return "", errors.New("missing api_key header")
	}
	digest := h.hashKey(raw)
	info, err := h.apikeys.FindByHash(r.Context(), digest)
	if err != nil {
		return "", errors.Wrap(err, "lookup api key")
	}
	if subtle.ConstantTimeCompare([]byte(info.KeyHash), []byte(digest)) != 1 {
		return "", errors.New("api key mismatch")
	}
	return info.UserID, nil
}

// RequireAPIKey authenticates the request via the api_key header and stores
// the resolved user ID in the request context.
func (h *Handler) RequireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := h.resolveUser(r)
		if err != nil {
			respondError(w, r, http.StatusUnauthorized, "unauthorized", "invalid or missing API key")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	})
}
