package cart

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"MiniCart/pkg/kit"
)

const keepAliveEvery = 25 * time.Second

// events streams the cart as server-sent events: the current items first,
// then the items after every change. A slow client only ever misses
// intermediate states; the newest state is always delivered.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	st := MustFromContext(r.Context())

	fl, ok := w.(http.Flusher)
	if !ok {
		kit.WriteError(w, r, http.StatusInternalServerError, "streaming unsupported", nil)
		return
	}

	latest := make(chan []LineItem, 1)
	unsubscribe := st.Subscribe(func(items []LineItem) {
		select {
		case latest <- items:
		default:
			select {
			case <-latest:
			default:
			}
			latest <- items
		}
	})
	defer unsubscribe()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, st.Items()); err != nil {
		return
	}
	fl.Flush()

	ticker := time.NewTicker(keepAliveEvery)
	defer ticker.Stop()

	stopping := kit.ShuttingDown(r.Context())
	for {
		select {
		case <-r.Context().Done():
			return
		case <-stopping:
			return
		case items := <-latest:
			if err := writeEvent(w, items); err != nil {
				if s.Log != nil {
					s.Log.Debug("event stream closed", zap.Error(err))
				}
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
		}
		fl.Flush()
	}
}

func writeEvent(w http.ResponseWriter, items []LineItem) error {
	b, err := json.Marshal(cartResp{Items: items})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: cart\ndata: %s\n\n", b)
	return err
}
