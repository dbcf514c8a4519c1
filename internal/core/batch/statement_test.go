package batch_test

import (
	"github.com/google/uuid"
	"github.com/softeno/permission-template/internal/core/batch"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Statement builder", func() {
	var (
		engine *batch.Engine[*widget]
		u1, u2 uuid.UUID
	)

	BeforeEach(func() {
		var err error
		engine, err = batch.NewEngine(widgetDescriptor())
		Expect(err).NotTo(HaveOccurred())
		u1 = uuid.New()
		u2 = uuid.New()
	})

	Describe("BuildInsert", func() {
		It("should list the key plus every column set by any entity", func() {
			stmt, err := engine.BuildInsert([]*widget{
				{UUID: u1, Name: strPtr("a"), Note: strPtr("x")},
				{UUID: u2, Name: strPtr("b")},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(stmt.SQL).To(Equal("INSERT INTO widgets (uuid, name, note) VALUES (?, ?, ?), (?, ?, ?) RETURNING id, uuid"))
			Expect(stmt.Args).To(Equal([]any{u1, "a", "x", u2, "b", nil}))
		})

		It("should include insert-only columns", func() {
			stmt, err := engine.BuildInsert([]*widget{{UUID: u1, Name: strPtr("a"), Version: int64Ptr(0)}})
			Expect(err).NotTo(HaveOccurred())
			Expect(stmt.SQL).To(Equal("INSERT INTO widgets (uuid, name, version) VALUES (?, ?, ?) RETURNING id, uuid"))
			Expect(stmt.Args).To(Equal([]any{u1, "a", int64(0)}))
		})

		It("should reject the whole batch when any entity has an id", func() {
			_, err := engine.BuildInsert([]*widget{
				{UUID: u1, Name: strPtr("a")},
				{UUID: u2, Name: strPtr("b"), ID: int64Ptr(7)},
			})
			Expect(err).To(MatchError(batch.ErrInvalidOperation))
			Expect(err.Error()).To(ContainSubstring("cannot insert entities with non-null id"))
		})

		It("should reject duplicate external ids", func() {
			_, err := engine.BuildInsert([]*widget{
				{UUID: u1, Name: strPtr("a")},
				{UUID: u1, Name: strPtr("b")},
			})
			Expect(err).To(MatchError(batch.ErrInvalidOperation))
		})

		It("should reject entities without an external id", func() {
			_, err := engine.BuildInsert([]*widget{{Name: strPtr("a")}})
			Expect(err).To(MatchError(batch.ErrInvalidOperation))
		})
	})

	Describe("BuildUpdate", func() {
		It("should only touch columns some entity sets", func() {
			stmt, ok, err := engine.BuildUpdate([]*widget{
				{ID: int64Ptr(1), UUID: u1, Note: strPtr("x")},
				{ID: int64Ptr(2), UUID: u2},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(stmt.SQL).To(Equal("UPDATE widgets SET note = CASE uuid WHEN ? THEN ? ELSE note END, version = version + 1 WHERE uuid IN (?, ?) RETURNING id, uuid"))
			Expect(stmt.Args).To(Equal([]any{u1, "x", u1, u2}))
		})

		It("should emit one CASE per column with a branch per setting entity", func() {
			stmt, ok, err := engine.BuildUpdate([]*widget{
				{ID: int64Ptr(1), UUID: u1, Name: strPtr("a"), Note: strPtr("x")},
				{ID: int64Ptr(2), UUID: u2, Name: strPtr("b")},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(stmt.SQL).To(Equal("UPDATE widgets SET " +
				"name = CASE uuid WHEN ? THEN ? WHEN ? THEN ? ELSE name END, " +
				"note = CASE uuid WHEN ? THEN ? ELSE note END, " +
				"version = version + 1 WHERE uuid IN (?, ?) RETURNING id, uuid"))
			Expect(stmt.Args).To(Equal([]any{u1, "a", u2, "b", u1, "x", u1, u2}))
		})

		It("should never update insert-only columns", func() {
			_, ok, err := engine.BuildUpdate([]*widget{{ID: int64Ptr(1), UUID: u1, Version: int64Ptr(9)}})
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("should be a no-op when no entity sets a field", func() {
			_, ok, err := engine.BuildUpdate([]*widget{{ID: int64Ptr(1), UUID: u1}})
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("should reject the whole batch when any entity lacks an id", func() {
			_, _, err := engine.BuildUpdate([]*widget{
				{ID: int64Ptr(1), UUID: u1, Name: strPtr("a")},
				{UUID: u2, Name: strPtr("b")},
			})
			Expect(err).To(MatchError(batch.ErrInvalidOperation))
			Expect(err.Error()).To(ContainSubstring("cannot update entities with null id"))
		})
	})

	Describe("Partition", func() {
		It("should split by id presence keeping order", func() {
			a := &widget{UUID: u1}
			b := &widget{UUID: u2, ID: int64Ptr(3)}
			c := &widget{UUID: uuid.New()}
			inserts, updates := engine.Partition([]*widget{a, b, c})
			Expect(inserts).To(Equal([]*widget{a, c}))
			Expect(updates).To(Equal([]*widget{b}))
		})
	})

	Describe("Descriptor validation", func() {
		It("should reject a missing table", func() {
			desc := widgetDescriptor()
			desc.Table = ""
			_, err := batch.NewEngine(desc)
			Expect(err).To(MatchError(batch.ErrInvalidDescriptor))
		})

		It("should reject duplicate columns", func() {
			desc := widgetDescriptor()
			desc.Columns = append(desc.Columns, desc.Columns[0])
			_, err := batch.NewEngine(desc)
			Expect(err).To(MatchError(batch.ErrInvalidDescriptor))
		})

		It("should reject a column shadowing the key", func() {
			desc := widgetDescriptor()
			desc.Columns = append(desc.Columns, batch.Column[*widget]{
				Name:  "uuid",
				Value: func(w *widget) (any, bool) { return w.UUID, true },
			})
			_, err := batch.NewEngine(desc)
			Expect(err).To(MatchError(batch.ErrInvalidDescriptor))
		})

		It("should reject an updatable version column", func() {
			desc := widgetDescriptor()
			desc.Columns[2].InsertOnly = false
			_, err := batch.NewEngine(desc)
			Expect(err).To(MatchError(batch.ErrInvalidDescriptor))
		})

		It("should reject unsafe identifiers", func() {
			desc := widgetDescriptor()
			desc.Columns[0].Name = "name; DROP TABLE widgets"
			_, err := batch.NewEngine(desc)
			Expect(err).To(MatchError(batch.ErrInvalidDescriptor))
		})

		It("should panic from MustEngine on a bad descriptor", func() {
			desc := widgetDescriptor()
			desc.ID = nil
			Expect(func() { batch.MustEngine(desc) }).To(Panic())
		})
	})
})
