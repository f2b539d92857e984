package client

import (
	"testing"

	"github.com/apshuang/ShareDocs/internal/op"
)

func TestDocumentView_ApplyRemoteRemapsCursors(t *testing.T) {
	v := NewDocumentView("Hello World", 3)
	v.SetCursor(1, 2) // 插入点之前，不动
	v.SetCursor(2, 8) // 插入点之后，后移
	v.SetCursor(3, 5) // 恰在插入点，后移

	err := v.ApplyRemote(op.Operation{Type: op.KindInsert, FromPos: 5, ToPos: 5, Content: ",", BaseVersion: 3}, 4)
	if err != nil {
		t.Fatalf("ApplyRemote() error: %v", err)
	}

	if got := v.Content(); got != "Hello, World" {
		t.Fatalf("Content() = %q", got)
	}
	if got := v.Revision(); got != 4 {
		t.Fatalf("Revision() = %d, want 4", got)
	}
	for userID, want := range map[uint64]int{1: 2, 2: 9, 3: 6} {
		got, ok := v.Cursor(userID)
		if !ok || got != want {
			t.Fatalf("Cursor(%d) = %d (ok=%v), want %d", userID, got, ok, want)
		}
	}
}

func TestDocumentView_ApplyRemoteDeleteCollapsesCursors(t *testing.T) {
	v := NewDocumentView("Hello, World", 4)
	v.SetCursor(1, 8) // 在删除区间内，塌缩到区间起点

	err := v.ApplyRemote(op.Operation{Type: op.KindDelete, FromPos: 5, ToPos: 12, BaseVersion: 4}, 5)
	if err != nil {
		t.Fatalf("ApplyRemote() error: %v", err)
	}
	if got := v.Content(); got != "Hello" {
		t.Fatalf("Content() = %q", got)
	}
	if got, _ := v.Cursor(1); got != 5 {
		t.Fatalf("Cursor(1) = %d, want 5", got)
	}
}

func TestDocumentView_ApplyRemoteInvalidOpLeavesStateUntouched(t *testing.T) {
	v := NewDocumentView("Hello", 1)
	v.SetCursor(1, 3)

	err := v.ApplyRemote(op.Operation{Type: op.KindDelete, FromPos: 2, ToPos: 99, BaseVersion: 1}, 2)
	if err == nil {
		t.Fatal("ApplyRemote() accepted out-of-range delete")
	}
	if got := v.Content(); got != "Hello" {
		t.Fatalf("Content() = %q after failed apply", got)
	}
	if got := v.Revision(); got != 1 {
		t.Fatalf("Revision() = %d after failed apply", got)
	}
	if got, _ := v.Cursor(1); got != 3 {
		t.Fatalf("Cursor(1) = %d after failed apply", got)
	}
}

func TestDocumentView_ResetClearsCursors(t *testing.T) {
	v := NewDocumentView("old", 2)
	v.SetCursor(1, 1)

	v.Reset("fresh from server", 9)
	if got := v.Content(); got != "fresh from server" {
		t.Fatalf("Content() = %q", got)
	}
	if got := v.Revision(); got != 9 {
		t.Fatalf("Revision() = %d", got)
	}
	if _, ok := v.Cursor(1); ok {
		t.Fatal("cursor survived Reset")
	}
}
