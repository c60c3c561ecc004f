package nwb

import (
	"strings"
	"testing"
)

func TestAddColumnLengthMismatch(t *testing.T) {
	tbl := NewTable("channels")
	if err := tbl.AddColumn("a", "", []any{1, 2, 3}); err != nil {
		t.Fatalf("AddColumn() error: %v", err)
	}
	err := tbl.AddColumn("b", "", []any{1})
	if err == nil || !strings.Contains(err.Error(), "want 3") {
		t.Fatalf("expected length mismatch error, got %v", err)
	}
	if err := tbl.AddColumn("a", "", []any{4, 5, 6}); err == nil {
		t.Fatalf("expected duplicate column error")
	}
}

func TestSetIndexFromColumn(t *testing.T) {
	tbl := NewTable("units")
	if err := tbl.AddColumn("id", "", []any{int64(10), int64(20)}); err != nil {
		t.Fatalf("AddColumn() error: %v", err)
	}
	if err := tbl.AddColumn("local_index", "", []any{int64(0), int64(1)}); err != nil {
		t.Fatalf("AddColumn() error: %v", err)
	}

	if err := tbl.SetIndexFromColumn("id"); err != nil {
		t.Fatalf("SetIndexFromColumn() error: %v", err)
	}
	if tbl.IndexName() != "id" {
		t.Fatalf("index name: got %q", tbl.IndexName())
	}
	ids := tbl.IDs()
	if len(ids) != 2 || ids[0] != 10 || ids[1] != 20 {
		t.Fatalf("ids: got %v", ids)
	}
	if tbl.HasColumn("id") {
		t.Fatalf("id column should be dropped after indexing")
	}
	if !tbl.HasColumn("local_index") {
		t.Fatalf("other columns must survive indexing")
	}
}

func TestSetIndexFromColumnRejectsText(t *testing.T) {
	tbl := NewTable("units")
	if err := tbl.AddColumn("id", "", []any{"abc"}); err != nil {
		t.Fatalf("AddColumn() error: %v", err)
	}
	if err := tbl.SetIndexFromColumn("id"); err == nil {
		t.Fatalf("expected conversion error for text ids")
	}
}

func TestAddRaggedColumnValidation(t *testing.T) {
	tbl := NewTable("units")
	tbl.SetIDs("id", []int64{1, 2})

	err := tbl.AddRaggedColumn("spike_times", "", []float64{0.1}, []int64{1})
	if err == nil || !strings.Contains(err.Error(), "boundaries") {
		t.Fatalf("expected boundary count error, got %v", err)
	}
	err = tbl.AddRaggedColumn("spike_times", "", []float64{0.1, 0.2}, []int64{1, 3})
	if err == nil || !strings.Contains(err.Error(), "final boundary") {
		t.Fatalf("expected final boundary error, got %v", err)
	}
	if err := tbl.AddRaggedColumn("spike_times", "", []float64{0.1, 0.2}, []int64{1, 2}); err != nil {
		t.Fatalf("AddRaggedColumn() error: %v", err)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	tbl := NewTable("channels")
	tbl.SetIDs("id", []int64{1})
	if err := tbl.AddColumn("valid_data", "", []any{true}); err != nil {
		t.Fatalf("AddColumn() error: %v", err)
	}

	clone := tbl.Clone()
	col, _ := clone.Column("valid_data")
	col.Values[0] = false
	if err := clone.AddConstantColumn("group", "", "0"); err != nil {
		t.Fatalf("AddConstantColumn() error: %v", err)
	}

	orig, _ := tbl.Column("valid_data")
	if orig.Values[0] != true {
		t.Fatalf("clone mutation leaked into original")
	}
	if tbl.HasColumn("group") {
		t.Fatalf("clone column leaked into original")
	}
}

func TestConcatUnionsColumns(t *testing.T) {
	a := NewTable("a")
	a.SetIDs("id", []int64{1, 2})
	if err := a.AddColumn("x", "", []any{1.0, 2.0}); err != nil {
		t.Fatalf("AddColumn() error: %v", err)
	}

	b := NewTable("b")
	b.SetIDs("id", []int64{3})
	if err := b.AddColumn("y", "", []any{"only-b"}); err != nil {
		t.Fatalf("AddColumn() error: %v", err)
	}

	merged, err := Concat("merged", []*Table{a, b}, "")
	if err != nil {
		t.Fatalf("Concat() error: %v", err)
	}
	if merged.Len() != 3 {
		t.Fatalf("merged length: got %d", merged.Len())
	}
	names := merged.ColumnNames()
	if len(names) != 2 || names[0] != "x" || names[1] != "y" {
		t.Fatalf("column order: got %v", names)
	}
	x, _ := merged.Column("x")
	if x.Values[2] != "" {
		t.Fatalf("fill value: got %v", x.Values[2])
	}
	y, _ := merged.Column("y")
	if y.Values[0] != "" || y.Values[2] != "only-b" {
		t.Fatalf("y values: got %v", y.Values)
	}
	ids := merged.IDs()
	if len(ids) != 3 || ids[2] != 3 {
		t.Fatalf("merged ids: got %v", ids)
	}
}

func TestConcatDropsIDsWhenAnyTableUnindexed(t *testing.T) {
	a := NewTable("a")
	a.SetIDs("id", []int64{1})
	if err := a.AddColumn("x", "", []any{1.0}); err != nil {
		t.Fatalf("AddColumn() error: %v", err)
	}
	b := NewTable("b")
	if err := b.AddColumn("x", "", []any{2.0}); err != nil {
		t.Fatalf("AddColumn() error: %v", err)
	}

	merged, err := Concat("merged", []*Table{a, b}, nil)
	if err != nil {
		t.Fatalf("Concat() error: %v", err)
	}
	if merged.IDs() != nil {
		t.Fatalf("expected no ids when an input is unindexed, got %v", merged.IDs())
	}
}

func TestConcatRejectsRaggedColumns(t *testing.T) {
	a := NewTable("a")
	a.SetIDs("id", []int64{1})
	if err := a.AddRaggedColumn("spike_times", "", []float64{0.1}, []int64{1}); err != nil {
		t.Fatalf("AddRaggedColumn() error: %v", err)
	}
	if _, err := Concat("merged", []*Table{a}, nil); err == nil {
		t.Fatalf("expected ragged concat error")
	}
}
