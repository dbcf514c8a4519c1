package internal_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/softeno/permission-template/internal"
	"gorm.io/gorm"
)

var _ = Describe("TranslateDBError", func() {
	It("should pass nil through", func() {
		Expect(internal.TranslateDBError(nil, "x")).To(BeNil())
	})

	It("should map gorm duplicate keys to DUPLICATE_PERMISSION", func() {
		err := internal.TranslateDBError(gorm.ErrDuplicatedKey, "x")
		appErr, ok := internal.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.StatusCode).To(Equal(http.StatusBadRequest))
		Expect(appErr.Code).To(Equal(internal.ErrCodeDuplicatePermission))
	})

	It("should map raw pgx unique violations", func() {
		err := internal.TranslateDBError(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), "x")
		appErr, ok := internal.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.Code).To(Equal(internal.ErrCodeDuplicatePermission))
	})

	It("should not treat other pg errors as duplicates", func() {
		Expect(internal.IsUniqueViolation(&pgconn.PgError{Code: "23503"})).To(BeFalse())
	})

	It("should wrap unknown errors as internal", func() {
		cause := errors.New("connection reset")
		err := internal.TranslateDBError(cause, "failed to list permissions")
		appErr, ok := internal.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.StatusCode).To(Equal(http.StatusInternalServerError))
		Expect(errors.Is(err, cause)).To(BeTrue())
	})

	It("should leave AppErrors untouched", func() {
		Expect(internal.TranslateDBError(internal.ErrVersionMismatch, "x")).To(BeIdenticalTo(internal.ErrVersionMismatch))
	})
})

var _ = Describe("AppError", func() {
	It("should find AppErrors through wrapping", func() {
		appErr, ok := internal.IsAppError(fmt.Errorf("tx: %w", internal.ErrVersionMismatch))
		Expect(ok).To(BeTrue())
		Expect(appErr.StatusCode).To(Equal(http.StatusConflict))
		Expect(appErr.Code).To(Equal(internal.ErrCodeOptimisticLock))
	})

	It("should report the first field message", func() {
		err := internal.NewValidationFieldError("name", "name is required", internal.ErrCodeInvalidName)
		Expect(err.Error()).To(Equal("name is required"))
	})

	It("should join every field message in the detailed message", func() {
		err := internal.NewValidationError("Validation failed", internal.ErrCodeValidationFailed).
			WithDetails(internal.ValidationErrors{Errors: []internal.ValidationError{
				{Field: "name", Message: "name is required"},
				{Field: "description", Message: "description is required"},
			}})
		Expect(err.GetDetailedMessage()).To(Equal("name is required; description is required"))
		Expect(internal.ErrVersionMismatch.GetDetailedMessage()).To(Equal("Version mismatch"))
	})

	It("should not serialize the cause", func() {
		err := internal.NewInternalError("boom", errors.New("secret dsn"))
		status, body := err.ToHTTPResponse()
		Expect(status).To(Equal(http.StatusInternalServerError))

		raw, marshalErr := json.Marshal(body)
		Expect(marshalErr).NotTo(HaveOccurred())
		Expect(string(raw)).To(ContainSubstring(`"code":"INTERNAL_ERROR"`))
		Expect(string(raw)).NotTo(ContainSubstring("secret dsn"))
	})

	It("should mark invalid batches as 400 INVALID_BATCH", func() {
		err := internal.NewInvalidOperationError("duplicate key", nil)
		Expect(err.StatusCode).To(Equal(http.StatusBadRequest))
		Expect(err.Code).To(Equal(internal.ErrCodeInvalidBatch))
	})
})

var _ = Describe("context helpers", func() {
	It("should default the actor to system", func() {
		Expect(internal.ActorFromContext(context.Background())).To(Equal(internal.SystemActor))
		Expect(internal.ActorFromContext(internal.ContextWithActor(context.Background(), ""))).To(Equal(internal.SystemActor))
	})

	It("should default timeouts to five seconds", func() {
		ctx, cancel := internal.WithTimeout(context.Background(), 0)
		defer cancel()
		deadline, ok := ctx.Deadline()
		Expect(ok).To(BeTrue())
		Expect(time.Until(deadline)).To(BeNumerically("~", 5*time.Second, time.Second))
	})

	It("should round-trip actor, roles and trace id", func() {
		ctx := internal.ContextWithActor(context.Background(), "alice")
		ctx = internal.ContextWithRoles(ctx, []string{"ROLE_ADMIN"})
		ctx = internal.ContextWithTraceID(ctx, "t-1")
		Expect(internal.ActorFromContext(ctx)).To(Equal("alice"))
		Expect(internal.RolesFromContext(ctx)).To(ConsistOf("ROLE_ADMIN"))
		Expect(internal.TraceIDFromContext(ctx)).To(Equal("t-1"))
	})
})
