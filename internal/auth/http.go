package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"MiniCart/pkg/kit"
)

type ctxKey string

const deviceKey ctxKey = "device"

func DeviceFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(deviceKey).(string)
	return v, ok && v != ""
}

func WithDevice(ctx context.Context, deviceID string) context.Context {
	return context.WithValue(ctx, deviceKey, deviceID)
}

type deviceResp struct {
	DeviceID    string `json:"device_id"`
	AccessToken string `json:"access_token"`
}

// IssueDevice registers a new anonymous device and returns its token.
// Tokens do not expire when ttl is zero, matching a cart that lives as long
// as the app install.
func IssueDevice(tm *TokenMaker, ttl time.Duration, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := "d_" + uuid.NewString()

		tok, err := tm.New(id, ttl)
		if err != nil {
			if log != nil {
				log.Error("token issue", zap.Error(err))
			}
			kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
			return
		}

		kit.WriteJSON(w, http.StatusCreated, deviceResp{DeviceID: id, AccessToken: tok})
	}
}

// RequireDevice rejects requests without a valid device token and stores the
// device id in the request context.
func RequireDevice(tm *TokenMaker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok, ok := kit.BearerToken(r)
			if !ok {
				kit.WriteError(w, r, http.StatusUnauthorized, "missing token", nil)
				return
			}

			claims, err := tm.Parse(tok)
			if err != nil {
				kit.WriteError(w, r, http.StatusUnauthorized, "invalid token", nil)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithDevice(r.Context(), claims.DeviceID)))
		})
	}
}
