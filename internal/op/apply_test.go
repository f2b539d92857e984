package op

import (
	"errors"
	"testing"
)

func TestApply_InsertMiddle(t *testing.T) {
	got, err := Apply("Hello World", Operation{Type: KindInsert, FromPos: 5, ToPos: 5, Content: ","})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got != "Hello, World" {
		t.Fatalf("Apply() = %q, want %q", got, "Hello, World")
	}
}

func TestApply_InsertLengthGrows(t *testing.T) {
	cases := []struct {
		buf     string
		pos     int
		content string
	}{
		{"", 0, "abc"},
		{"Hello", 0, "x"},
		{"Hello", 5, " World"},
		{"你好世界", 2, "，"},
	}
	for _, c := range cases {
		got, err := Apply(c.buf, Operation{Type: KindInsert, FromPos: c.pos, ToPos: c.pos, Content: c.content})
		if err != nil {
			t.Fatalf("Apply(%q, insert@%d) error = %v", c.buf, c.pos, err)
		}
		want := len([]rune(c.buf)) + len([]rune(c.content))
		if gotLen := len([]rune(got)); gotLen != want {
			t.Fatalf("len = %d, want %d (got %q)", gotLen, want, got)
		}
	}
}

func TestApply_DeletePrefix(t *testing.T) {
	got, err := Apply("Hello World", Operation{Type: KindDelete, FromPos: 0, ToPos: 5})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got != " World" {
		t.Fatalf("Apply() = %q, want %q", got, " World")
	}
}

func TestApply_Replace(t *testing.T) {
	got, err := Apply("Hello World", Operation{Type: KindReplace, FromPos: 6, ToPos: 11, Content: "There"})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got != "Hello There" {
		t.Fatalf("Apply() = %q, want %q", got, "Hello There")
	}
}

func TestApply_FormatKeepsContent(t *testing.T) {
	got, err := Apply("Hello World", Operation{Type: KindFormat, FromPos: 0, ToPos: 5, Marks: map[string]any{"bold": true}})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got != "Hello World" {
		t.Fatalf("format changed content: %q", got)
	}
}

// 插入再删除同一区间应当还原原文
func TestApply_InsertDeleteRoundTrip(t *testing.T) {
	orig := "Hello World"
	s := "，你好"
	p := 5

	inserted, err := Apply(orig, Operation{Type: KindInsert, FromPos: p, ToPos: p, Content: s})
	if err != nil {
		t.Fatalf("insert error = %v", err)
	}
	restored, err := Apply(inserted, Operation{Type: KindDelete, FromPos: p, ToPos: p + len([]rune(s))})
	if err != nil {
		t.Fatalf("delete error = %v", err)
	}
	if restored != orig {
		t.Fatalf("round trip = %q, want %q", restored, orig)
	}
}

func TestApply_InvalidRange(t *testing.T) {
	buf := "Hello"
	cases := []Operation{
		{Type: KindInsert, FromPos: 2, ToPos: 3, Content: "x"}, // insert 要求 from == to
		{Type: KindInsert, FromPos: 6, ToPos: 6, Content: "x"},
		{Type: KindInsert, FromPos: -1, ToPos: -1, Content: "x"},
		{Type: KindDelete, FromPos: 3, ToPos: 3},
		{Type: KindDelete, FromPos: 4, ToPos: 2},
		{Type: KindDelete, FromPos: 0, ToPos: 6},
		{Type: KindReplace, FromPos: 2, ToPos: 2, Content: "x"},
		{Type: KindReplace, FromPos: 0, ToPos: 9, Content: "x"},
		{Type: KindFormat, FromPos: 3, ToPos: 2},
		{Type: KindFormat, FromPos: 0, ToPos: 6},
	}
	for i, o := range cases {
		if _, err := Apply(buf, o); !errors.Is(err, ErrInvalidRange) {
			t.Fatalf("case %d (%+v): err = %v, want ErrInvalidRange", i, o, err)
		}
	}
}

func TestApply_MissingContent(t *testing.T) {
	if _, err := Apply("Hello", Operation{Type: KindInsert, FromPos: 0, ToPos: 0}); !errors.Is(err, ErrMissingContent) {
		t.Fatalf("insert without content: err = %v, want ErrMissingContent", err)
	}
	if _, err := Apply("Hello", Operation{Type: KindReplace, FromPos: 0, ToPos: 2}); !errors.Is(err, ErrMissingContent) {
		t.Fatalf("replace without content: err = %v, want ErrMissingContent", err)
	}
}

func TestApply_UnsupportedType(t *testing.T) {
	if _, err := Apply("Hello", Operation{Type: "move", FromPos: 0, ToPos: 1}); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("err = %v, want ErrUnsupportedType", err)
	}
}
