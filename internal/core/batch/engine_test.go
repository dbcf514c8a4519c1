package batch_test

import (
	"context"

	"github.com/google/uuid"
	"github.com/softeno/permission-template/internal/core/batch"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// SQLiteWidget is the table backing the widget entity in tests.
type SQLiteWidget struct {
	ID      int64   `gorm:"primaryKey"`
	UUID    string  `gorm:"column:uuid;uniqueIndex;not null"`
	Name    *string `gorm:"column:name;uniqueIndex"`
	Note    *string `gorm:"column:note"`
	Version int64   `gorm:"column:version;not null;default:0"`
}

func (SQLiteWidget) TableName() string {
	return "widgets"
}

var _ = Describe("Engine against SQLite", func() {
	var (
		ctx    context.Context
		db     *gorm.DB
		exec   *batch.GormExecutor
		engine *batch.Engine[*widget]
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger:         logger.Default.LogMode(logger.Silent),
			TranslateError: true,
		})
		Expect(err).NotTo(HaveOccurred())

		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)

		Expect(db.AutoMigrate(&SQLiteWidget{})).To(Succeed())

		exec = batch.NewGormExecutor(db)
		engine = batch.MustEngine(widgetDescriptor())
	})

	countRows := func() int64 {
		var n int64
		Expect(db.Model(&SQLiteWidget{}).Count(&n).Error).NotTo(HaveOccurred())
		return n
	}

	load := func(key uuid.UUID) SQLiteWidget {
		var row SQLiteWidget
		Expect(db.Where("uuid = ?", key.String()).First(&row).Error).NotTo(HaveOccurred())
		return row
	}

	Describe("InsertAll", func() {
		It("should return distinct positive ids keyed by external id", func() {
			entities := []*widget{
				{UUID: uuid.New(), Name: strPtr("1"), Version: int64Ptr(0)},
				{UUID: uuid.New(), Name: strPtr("2"), Version: int64Ptr(0)},
				{UUID: uuid.New(), Name: strPtr("3"), Note: strPtr("n"), Version: int64Ptr(0)},
			}

			ids, err := engine.InsertAll(ctx, exec, entities)
			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(HaveLen(3))

			seen := map[int64]bool{}
			for _, e := range entities {
				id, ok := ids[e.UUID]
				Expect(ok).To(BeTrue())
				Expect(id).To(BeNumerically(">", 0))
				Expect(seen[id]).To(BeFalse())
				seen[id] = true

				row := load(e.UUID)
				Expect(row.ID).To(Equal(id))
				Expect(*row.Name).To(Equal(*e.Name))
			}
			Expect(countRows()).To(Equal(int64(3)))
		})

		It("should return an empty map for empty input", func() {
			ids, err := engine.InsertAll(ctx, exec, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(BeEmpty())
		})

		It("should write no rows when any entity already has an id", func() {
			_, err := engine.InsertAll(ctx, exec, []*widget{
				{UUID: uuid.New(), Name: strPtr("1")},
				{UUID: uuid.New(), Name: strPtr("2"), ID: int64Ptr(42)},
			})
			Expect(err).To(MatchError(batch.ErrInvalidOperation))
			Expect(countRows()).To(BeZero())
		})

		It("should surface unique violations", func() {
			_, err := engine.InsertAll(ctx, exec, []*widget{{UUID: uuid.New(), Name: strPtr("dup")}})
			Expect(err).NotTo(HaveOccurred())

			_, err = engine.InsertAll(ctx, exec, []*widget{{UUID: uuid.New(), Name: strPtr("dup")}})
			Expect(err).To(HaveOccurred())
			Expect(countRows()).To(Equal(int64(1)))
		})
	})

	Describe("UpdateAll", func() {
		var a, b *widget

		BeforeEach(func() {
			a = &widget{UUID: uuid.New(), Name: strPtr("A"), Note: strPtr("B"), Version: int64Ptr(0)}
			b = &widget{UUID: uuid.New(), Name: strPtr("C"), Note: strPtr("D"), Version: int64Ptr(0)}
			ids, err := engine.InsertAll(ctx, exec, []*widget{a, b})
			Expect(err).NotTo(HaveOccurred())
			a.ID = int64Ptr(ids[a.UUID])
			b.ID = int64Ptr(ids[b.UUID])
		})

		It("should preserve fields the batch leaves unset", func() {
			ids, err := engine.UpdateAll(ctx, exec, []*widget{
				{ID: a.ID, UUID: a.UUID, Note: strPtr("C")},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(HaveKeyWithValue(a.UUID, *a.ID))

			row := load(a.UUID)
			Expect(*row.Name).To(Equal("A"))
			Expect(*row.Note).To(Equal("C"))
			Expect(row.Version).To(Equal(int64(1)))

			untouched := load(b.UUID)
			Expect(*untouched.Note).To(Equal("D"))
			Expect(untouched.Version).To(BeZero())
		})

		It("should update different columns per entity in one statement", func() {
			ids, err := engine.UpdateAll(ctx, exec, []*widget{
				{ID: a.ID, UUID: a.UUID, Name: strPtr("A2")},
				{ID: b.ID, UUID: b.UUID, Note: strPtr("D2")},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(HaveLen(2))

			rowA := load(a.UUID)
			Expect(*rowA.Name).To(Equal("A2"))
			Expect(*rowA.Note).To(Equal("B"))

			rowB := load(b.UUID)
			Expect(*rowB.Name).To(Equal("C"))
			Expect(*rowB.Note).To(Equal("D2"))
		})

		It("should be a no-op returning an empty map when nothing is set", func() {
			ids, err := engine.UpdateAll(ctx, exec, []*widget{{ID: a.ID, UUID: a.UUID}})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(BeEmpty())
			Expect(load(a.UUID).Version).To(BeZero())
		})

		It("should reject entities without an id", func() {
			_, err := engine.UpdateAll(ctx, exec, []*widget{{UUID: a.UUID, Name: strPtr("x")}})
			Expect(err).To(MatchError(batch.ErrInvalidOperation))
			Expect(*load(a.UUID).Name).To(Equal("A"))
		})

		It("should fail when a key matches no stored row", func() {
			_, err := engine.UpdateAll(ctx, exec, []*widget{{ID: int64Ptr(999), UUID: uuid.New(), Name: strPtr("ghost")}})
			Expect(err).To(MatchError(batch.ErrUnmatchedKey))
		})

		It("should fail when the id and key name different rows", func() {
			err := db.Transaction(func(tx *gorm.DB) error {
				_, err := engine.UpdateAll(ctx, batch.NewGormExecutor(tx), []*widget{
					{ID: b.ID, UUID: a.UUID, Note: strPtr("x")},
				})
				return err
			})
			Expect(err).To(MatchError(batch.ErrUnmatchedKey))

			Expect(*load(a.UUID).Note).To(Equal("B"))
			Expect(load(a.UUID).Version).To(BeZero())
			Expect(*load(b.UUID).Note).To(Equal("D"))
		})
	})

	Describe("Reconcile", func() {
		It("should insert new entities and update existing ones", func() {
			existing := &widget{UUID: uuid.New(), Name: strPtr("old"), Version: int64Ptr(0)}
			inserted, err := engine.InsertAll(ctx, exec, []*widget{existing})
			Expect(err).NotTo(HaveOccurred())
			existing.ID = int64Ptr(inserted[existing.UUID])
			existing.Name = strPtr("renamed")

			fresh := &widget{UUID: uuid.New(), Name: strPtr("new"), Version: int64Ptr(0)}

			ids, err := engine.Reconcile(ctx, exec, []*widget{existing, fresh})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(HaveLen(2))
			Expect(ids[existing.UUID]).To(Equal(*existing.ID))
			Expect(ids[fresh.UUID]).NotTo(Equal(*existing.ID))

			Expect(*load(existing.UUID).Name).To(Equal("renamed"))
			Expect(load(existing.UUID).Version).To(Equal(int64(1)))
			Expect(*load(fresh.UUID).Name).To(Equal("new"))
		})

		It("should reject duplicate keys across the insert and update halves", func() {
			key := uuid.New()
			_, err := engine.Reconcile(ctx, exec, []*widget{
				{UUID: key, Name: strPtr("a")},
				{UUID: key, ID: int64Ptr(1), Name: strPtr("b")},
			})
			Expect(err).To(MatchError(batch.ErrInvalidOperation))
			Expect(countRows()).To(BeZero())
		})
	})
})
