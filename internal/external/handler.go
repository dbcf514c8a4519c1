package external

import (
	"context"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/softeno/permission-template/internal/transport"
)

type SampleFetcher interface {
	FetchSample(ctx context.Context, id string) string
}

type Handler struct {
	*transport.BaseHandler
	Client SampleFetcher
}

func NewHandler(baseHandler *transport.BaseHandler, client SampleFetcher) *Handler {
	return &Handler{BaseHandler: baseHandler, Client: client}
}

// GetResource proxies /sample/{id} from the upstream. Upstream failures
// still answer 200 with the fallback body.
func (h *Handler) GetResource(w http.ResponseWriter, r *http.Request) {
	body := h.Client.FetchSample(r.Context(), chi.URLParam(r, "id"))
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// Echo answers "<METHOD> <id>" for any authenticated caller.
func (h *Handler) Echo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(r.Method + " " + chi.URLParam(r, "id")))
}
