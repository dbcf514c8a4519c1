package permission_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"

	"github.com/go-chi/chi"
	"github.com/google/uuid"
	"github.com/softeno/permission-template/internal"
	"github.com/softeno/permission-template/internal/permission"
	permissionPostgres "github.com/softeno/permission-template/internal/permission/postgres"
	"github.com/softeno/permission-template/internal/transport"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type errorBody struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

var _ = Describe("Permission Handler Integration", func() {
	var router chi.Router

	BeforeEach(func() {
		slogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

		db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger:         logger.Default.LogMode(logger.Silent),
			TranslateError: true,
		})
		Expect(err).NotTo(HaveOccurred())
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)
		Expect(db.AutoMigrate(&sqlitePermission{})).To(Succeed())

		service := permission.NewService(permissionPostgres.NewPermissionRepository(db), nil, nil, slogger)
		handler := permission.NewHandler(&transport.BaseHandler{Logger: slogger}, service)

		router = chi.NewRouter()
		router.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if actor := r.Header.Get("X-Test-Actor"); actor != "" {
					r = r.WithContext(internal.ContextWithActor(r.Context(), actor))
				}
				next.ServeHTTP(w, r)
			})
		})
		router.Get("/permissions", handler.ListPermissions)
		router.Get("/permissions/count", handler.CountPermissions)
		router.Post("/permissions", handler.CreatePermission)
		router.Post("/permissions/batch", handler.ImportPermissions)
		router.Get("/permissions/{id}", handler.GetPermission)
		router.Put("/permissions/{id}", handler.UpdatePermission)
		router.Delete("/permissions/{id}", handler.DeletePermission)
	})

	do := func(method, path string, body interface{}) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
		}
		req := httptest.NewRequest(method, path, &buf)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Test-Actor", "alice")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	decodeError := func(w *httptest.ResponseRecorder) errorBody {
		var body errorBody
		Expect(json.NewDecoder(w.Body).Decode(&body)).To(Succeed())
		return body
	}

	create := func(name string) permission.PermissionResponse {
		w := do(http.MethodPost, "/permissions", map[string]string{"name": name, "description": name + " desc"})
		Expect(w.Code).To(Equal(http.StatusCreated))
		var resp permission.PermissionResponse
		Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
		return resp
	}

	It("should create and fetch a permission", func() {
		created := create("read")
		Expect(created.Version).To(BeZero())
		Expect(created.CreatedBy).To(Equal("alice"))

		w := do(http.MethodGet, fmt.Sprintf("/permissions/%d", created.ID), nil)
		Expect(w.Code).To(Equal(http.StatusOK))

		var fetched permission.PermissionResponse
		Expect(json.NewDecoder(w.Body).Decode(&fetched)).To(Succeed())
		Expect(fetched.UUID).To(Equal(created.UUID))
	})

	It("should return 404 for unknown permissions", func() {
		w := do(http.MethodGet, "/permissions/42", nil)
		Expect(w.Code).To(Equal(http.StatusNotFound))
		Expect(decodeError(w).Error.Code).To(Equal(string(internal.ErrCodePermissionNotFound)))
	})

	It("should return 400 for malformed ids", func() {
		w := do(http.MethodGet, "/permissions/abc", nil)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("should return 400 for duplicate names", func() {
		create("read")
		w := do(http.MethodPost, "/permissions", map[string]string{"name": "read", "description": "again"})
		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(decodeError(w).Error.Code).To(Equal(string(internal.ErrCodeDuplicatePermission)))
	})

	It("should reject unknown body fields", func() {
		w := do(http.MethodPost, "/permissions", map[string]string{"name": "x", "description": "y", "colour": "red"})
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("should update with the current version and conflict with a stale one", func() {
		created := create("edit")
		path := fmt.Sprintf("/permissions/%d", created.ID)

		w := do(http.MethodPut, path, map[string]interface{}{"name": "edit", "description": "v1", "version": 0})
		Expect(w.Code).To(Equal(http.StatusOK))
		var updated permission.PermissionResponse
		Expect(json.NewDecoder(w.Body).Decode(&updated)).To(Succeed())
		Expect(updated.Version).To(Equal(int64(1)))

		w = do(http.MethodPut, path, map[string]interface{}{"name": "edit", "description": "v2", "version": 0})
		Expect(w.Code).To(Equal(http.StatusConflict))
		Expect(decodeError(w).Error.Code).To(Equal(string(internal.ErrCodeOptimisticLock)))
	})

	It("should delete and then report not found", func() {
		created := create("gone")
		path := fmt.Sprintf("/permissions/%d", created.ID)

		Expect(do(http.MethodDelete, path, nil).Code).To(Equal(http.StatusNoContent))
		Expect(do(http.MethodDelete, path, nil).Code).To(Equal(http.StatusNotFound))
	})

	It("should list, page and count", func() {
		create("a")
		create("b")
		create("c")

		w := do(http.MethodGet, "/permissions?sort=name&direction=desc&size=2", nil)
		Expect(w.Code).To(Equal(http.StatusOK))
		var list permission.PermissionsResponse
		Expect(json.NewDecoder(w.Body).Decode(&list)).To(Succeed())
		Expect(list.Size).To(Equal(2))
		Expect(list.Permissions).To(HaveLen(2))
		Expect(list.Permissions[0].Name).To(Equal("c"))

		w = do(http.MethodGet, "/permissions/count?search=B", nil)
		Expect(w.Code).To(Equal(http.StatusOK))
		var count permission.CountResponse
		Expect(json.NewDecoder(w.Body).Decode(&count)).To(Succeed())
		Expect(count.Count).To(Equal(int64(1)))
	})

	It("should reject bad list parameters", func() {
		Expect(do(http.MethodGet, "/permissions?sort=secret", nil).Code).To(Equal(http.StatusBadRequest))
		Expect(do(http.MethodGet, "/permissions?size=1000", nil).Code).To(Equal(http.StatusBadRequest))
		Expect(do(http.MethodGet, "/permissions?createdFrom=yesterday", nil).Code).To(Equal(http.StatusBadRequest))
	})

	It("should import a batch and return ids by uuid", func() {
		existing := create("old")
		fresh := uuid.New()

		w := do(http.MethodPost, "/permissions/batch", []map[string]interface{}{
			{"uuid": fresh.String(), "name": "new", "description": "d"},
			{"uuid": existing.UUID, "id": existing.ID, "description": "changed"},
		})
		Expect(w.Code).To(Equal(http.StatusOK))

		var resp permission.BatchResponse
		Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
		Expect(resp.IDs).To(HaveLen(2))
		Expect(resp.IDs).To(HaveKeyWithValue(existing.UUID, existing.ID))

		w = do(http.MethodGet, fmt.Sprintf("/permissions/%d", existing.ID), nil)
		var fetched permission.PermissionResponse
		Expect(json.NewDecoder(w.Body).Decode(&fetched)).To(Succeed())
		Expect(fetched.Name).To(Equal("old"))
		Expect(fetched.Description).To(Equal("changed"))
		Expect(fetched.Version).To(Equal(int64(1)))
	})

	It("should reject a batch with repeated uuids", func() {
		key := uuid.New().String()
		w := do(http.MethodPost, "/permissions/batch", []map[string]interface{}{
			{"uuid": key, "name": "x", "description": "d"},
			{"uuid": key, "name": "y", "description": "d"},
		})
		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(decodeError(w).Error.Code).To(Equal(string(internal.ErrCodeInvalidBatch)))
	})
})
