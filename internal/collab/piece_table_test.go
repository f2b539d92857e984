package collab

import (
	"errors"
	"testing"

	"github.com/apshuang/ShareDocs/internal/op"
)

func TestPieceTable_BasicString(t *testing.T) {
	pt := NewPieceTable("Hello world")
	if got := pt.String(); got != "Hello world" {
		t.Fatalf("String() = %q, want %q", got, "Hello world")
	}
	if gotLen := pt.Len(); gotLen != len([]rune("Hello world")) {
		t.Fatalf("Len() = %d, want %d", gotLen, len([]rune("Hello world")))
	}
}

func TestPieceTable_InsertMiddle(t *testing.T) {
	pt := NewPieceTable("Hello world")

	err := pt.Apply(op.Operation{Type: op.KindInsert, FromPos: 5, ToPos: 5, Content: " collaborative"})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	want := "Hello collaborative world"
	if got := pt.String(); got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

func TestPieceTable_DeleteMiddle(t *testing.T) {
	pt := NewPieceTable("Hello collaborative world")

	// 保留 "Hello"，删掉 " collaborative"
	err := pt.Apply(op.Operation{Type: op.KindDelete, FromPos: 5, ToPos: 19})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	want := "Hello world"
	if got := pt.String(); got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

func TestPieceTable_DeleteAcrossPieces(t *testing.T) {
	pt := NewPieceTable("Hello world")
	if err := pt.Apply(op.Operation{Type: op.KindInsert, FromPos: 5, ToPos: 5, Content: " big"}); err != nil {
		t.Fatalf("insert error = %v", err)
	}
	// "Hello big world"，删除跨 original/add 两个 piece 的 [3,12)
	if err := pt.Apply(op.Operation{Type: op.KindDelete, FromPos: 3, ToPos: 12}); err != nil {
		t.Fatalf("delete error = %v", err)
	}
	if got := pt.String(); got != "Helrld" {
		t.Fatalf("String() = %q, want %q", got, "Helrld")
	}
}

func TestPieceTable_Replace(t *testing.T) {
	pt := NewPieceTable("Hello World")
	if err := pt.Apply(op.Operation{Type: op.KindReplace, FromPos: 6, ToPos: 11, Content: "There"}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got := pt.String(); got != "Hello There" {
		t.Fatalf("String() = %q, want %q", got, "Hello There")
	}
}

func TestPieceTable_FormatNoChange(t *testing.T) {
	pt := NewPieceTable("Hello World")
	if err := pt.Apply(op.Operation{Type: op.KindFormat, FromPos: 0, ToPos: 5, Marks: map[string]any{"bold": true}}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got := pt.String(); got != "Hello World" {
		t.Fatalf("format changed content: %q", got)
	}
	if pt.Len() != 11 {
		t.Fatalf("Len() = %d, want 11", pt.Len())
	}
}

func TestPieceTable_RejectsInvalidOperation(t *testing.T) {
	pt := NewPieceTable("Hello")
	err := pt.Apply(op.Operation{Type: op.KindDelete, FromPos: 0, ToPos: 10})
	if !errors.Is(err, op.ErrInvalidRange) {
		t.Fatalf("err = %v, want ErrInvalidRange", err)
	}
	// 校验失败不得部分应用
	if got := pt.String(); got != "Hello" {
		t.Fatalf("buffer mutated after rejected op: %q", got)
	}
}

func TestPieceTable_EmptyInitial(t *testing.T) {
	pt := NewPieceTable("")
	if pt.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", pt.Len())
	}
	if err := pt.Apply(op.Operation{Type: op.KindInsert, FromPos: 0, ToPos: 0, Content: "abc"}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got := pt.String(); got != "abc" {
		t.Fatalf("String() = %q, want %q", got, "abc")
	}
}
