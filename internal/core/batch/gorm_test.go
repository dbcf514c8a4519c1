package batch_test

import (
	"context"
	"database/sql"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/softeno/permission-template/internal"
	"github.com/softeno/permission-template/internal/core/batch"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("GormExecutor on the postgres dialect", func() {
	var (
		ctx    context.Context
		sqlDB  *sql.DB
		mock   sqlmock.Sqlmock
		exec   *batch.GormExecutor
		engine *batch.Engine[*widget]
		u1, u2 uuid.UUID
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		sqlDB, mock, err = sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
		Expect(err).NotTo(HaveOccurred())

		db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
			Logger:         logger.Default.LogMode(logger.Silent),
			TranslateError: true,
		})
		Expect(err).NotTo(HaveOccurred())

		exec = batch.NewGormExecutor(db)
		engine = batch.MustEngine(widgetDescriptor())
		u1 = uuid.New()
		u2 = uuid.New()
	})

	AfterEach(func() {
		Expect(mock.ExpectationsWereMet()).To(Succeed())
		sqlDB.Close()
	})

	It("should send a multi-row insert with numbered placeholders", func() {
		mock.ExpectQuery("INSERT INTO widgets (uuid, name, note) VALUES ($1, $2, $3), ($4, $5, $6) RETURNING id, uuid").
			WithArgs(u1.String(), "a", "x", u2.String(), "b", nil).
			WillReturnRows(sqlmock.NewRows([]string{"id", "uuid"}).
				AddRow(int64(11), u1.String()).
				AddRow(int64(12), u2.String()))

		ids, err := engine.InsertAll(ctx, exec, []*widget{
			{UUID: u1, Name: strPtr("a"), Note: strPtr("x")},
			{UUID: u2, Name: strPtr("b")},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(ids).To(Equal(batch.IDs{u1: 11, u2: 12}))
	})

	It("should send a CASE update keyed by external id", func() {
		mock.ExpectQuery("UPDATE widgets SET note = CASE uuid WHEN $1 THEN $2 ELSE note END, version = version + 1 WHERE uuid IN ($3, $4) RETURNING id, uuid").
			WithArgs(u1.String(), "x", u1.String(), u2.String()).
			WillReturnRows(sqlmock.NewRows([]string{"id", "uuid"}).
				AddRow(int64(1), u1.String()).
				AddRow(int64(2), u2.String()))

		ids, err := engine.UpdateAll(ctx, exec, []*widget{
			{ID: int64Ptr(1), UUID: u1, Note: strPtr("x")},
			{ID: int64Ptr(2), UUID: u2},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(ids).To(Equal(batch.IDs{u1: 1, u2: 2}))
	})

	It("should not touch the database for an empty update", func() {
		ids, err := engine.UpdateAll(ctx, exec, []*widget{{ID: int64Ptr(1), UUID: u1}})
		Expect(err).NotTo(HaveOccurred())
		Expect(ids).To(BeEmpty())
	})

	It("should surface unique violations as duplicates", func() {
		mock.ExpectQuery("INSERT INTO widgets (uuid, name) VALUES ($1, $2) RETURNING id, uuid").
			WithArgs(u1.String(), "a").
			WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})

		_, err := engine.InsertAll(ctx, exec, []*widget{{UUID: u1, Name: strPtr("a")}})
		Expect(err).To(HaveOccurred())
		Expect(internal.IsUniqueViolation(err)).To(BeTrue())
	})
})
