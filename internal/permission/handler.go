package permission

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/softeno/permission-template/internal"
	"github.com/softeno/permission-template/internal/core/batch"
	"github.com/softeno/permission-template/internal/transport"
)

type ServiceAPI interface {
	GetPermission(ctx context.Context, id int64) (*Permission, error)
	ListPermissions(ctx context.Context, query ListQuery) ([]*Permission, error)
	CountPermissions(ctx context.Context, filter Filter) (int64, error)
	CreatePermission(ctx context.Context, dto CreatePermissionDTO, actor string) (*Permission, error)
	UpdatePermission(ctx context.Context, id int64, dto UpdatePermissionDTO, actor string) (*Permission, error)
	DeletePermission(ctx context.Context, id int64) error
	ImportPermissions(ctx context.Context, items []BatchItemDTO, actor string) (batch.IDs, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

func (h *Handler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	query, appErr := parseListQuery(r)
	if appErr != nil {
		h.WriteError(w, appErr)
		return
	}

	permissions, err := h.Service.ListPermissions(r.Context(), query)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	response := PermissionsResponse{
		Permissions: make([]PermissionResponse, 0, len(permissions)),
		Page:        query.Page,
		Size:        query.Size,
	}
	if response.Size == 0 {
		response.Size = DefaultPageSize
	}
	for _, p := range permissions {
		response.Permissions = append(response.Permissions, p.ToResponse())
	}
	h.WriteJSON(w, http.StatusOK, response)
}

func (h *Handler) CountPermissions(w http.ResponseWriter, r *http.Request) {
	filter, appErr := parseFilter(r)
	if appErr != nil {
		h.WriteError(w, appErr)
		return
	}

	count, err := h.Service.CountPermissions(r.Context(), filter)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, CountResponse{Count: count})
}

func (h *Handler) GetPermission(w http.ResponseWriter, r *http.Request) {
	id, appErr := h.IDParam(r, "id")
	if appErr != nil {
		h.WriteError(w, appErr)
		return
	}

	p, err := h.Service.GetPermission(r.Context(), id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, p.ToResponse())
}

func (h *Handler) CreatePermission(w http.ResponseWriter, r *http.Request) {
	var dto CreatePermissionDTO
	if appErr := h.DecodeJSON(w, r, &dto); appErr != nil {
		h.WriteError(w, appErr)
		return
	}

	p, err := h.Service.CreatePermission(r.Context(), dto, internal.ActorFromContext(r.Context()))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, p.ToResponse())
}

func (h *Handler) UpdatePermission(w http.ResponseWriter, r *http.Request) {
	id, appErr := h.IDParam(r, "id")
	if appErr != nil {
		h.WriteError(w, appErr)
		return
	}

	var dto UpdatePermissionDTO
	if appErr := h.DecodeJSON(w, r, &dto); appErr != nil {
		h.WriteError(w, appErr)
		return
	}

	p, err := h.Service.UpdatePermission(r.Context(), id, dto, internal.ActorFromContext(r.Context()))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, p.ToResponse())
}

func (h *Handler) DeletePermission(w http.ResponseWriter, r *http.Request) {
	id, appErr := h.IDParam(r, "id")
	if appErr != nil {
		h.WriteError(w, appErr)
		return
	}

	if err := h.Service.DeletePermission(r.Context(), id); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ImportPermissions(w http.ResponseWriter, r *http.Request) {
	var items []BatchItemDTO
	if appErr := h.DecodeJSON(w, r, &items); appErr != nil {
		h.WriteError(w, appErr)
		return
	}

	ids, err := h.Service.ImportPermissions(r.Context(), items, internal.ActorFromContext(r.Context()))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	response := BatchResponse{IDs: make(map[string]int64, len(ids))}
	for key, id := range ids {
		response.IDs[key.String()] = id
	}
	h.WriteJSON(w, http.StatusOK, response)
}

func parseListQuery(r *http.Request) (ListQuery, *internal.AppError) {
	filter, appErr := parseFilter(r)
	if appErr != nil {
		return ListQuery{}, appErr
	}

	values := r.URL.Query()
	query := ListQuery{
		Filter:    filter,
		Sort:      values.Get("sort"),
		Direction: values.Get("direction"),
	}

	if raw := values.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return ListQuery{}, internal.NewValidationFieldError("page", "page must be an integer", internal.ErrCodeInvalidQuery)
		}
		query.Page = page
	}
	if raw := values.Get("size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 1 {
			return ListQuery{}, internal.NewValidationFieldError("size", "size must be a positive integer", internal.ErrCodeInvalidQuery)
		}
		query.Size = size
	}
	return query, nil
}

func parseFilter(r *http.Request) (Filter, *internal.AppError) {
	values := r.URL.Query()
	filter := Filter{
		Search:    values.Get("search"),
		CreatedBy: values.Get("createdBy"),
	}

	for _, bound := range []struct {
		param string
		dst   **time.Time
	}{
		{"createdFrom", &filter.CreatedFrom},
		{"createdTo", &filter.CreatedTo},
	} {
		raw := values.Get(bound.param)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return Filter{}, internal.NewValidationFieldError(bound.param, bound.param+" must be an RFC3339 timestamp", internal.ErrCodeInvalidQuery)
		}
		t = t.UTC()
		*bound.dst = &t
	}
	return filter, nil
}
