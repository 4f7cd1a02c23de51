package classfile

import (
	"bytes"
	"errors"
	"testing"

	"github.com/daimatz/minijvm/pkg/classfile/classfiletest"
	"github.com/daimatz/minijvm/pkg/vmerr"
)

func mustParse(t *testing.T, b *classfiletest.Builder) *ClassFile {
	t.Helper()
	cf, err := Parse(b.Bytes())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return cf
}

func TestParseConstantPoolKinds(t *testing.T) {
	b := classfiletest.New("Hello")
	field := b.Fieldref("java/lang/System", "out", "Ljava/io/PrintStream;")
	str := b.String("Hello")
	method := b.Methodref("java/io/PrintStream", "println", "(Ljava/lang/String;)V")
	cf := mustParse(t, b)
	pool := cf.ConstantPool

	if pool.Len() != int(b.PoolCount()) {
		t.Fatalf("pool size: got %d, want %d", pool.Len(), b.PoolCount())
	}
	if pool[0].Tag() != TagUnused {
		t.Errorf("slot 0: got %s, want Unused", pool[0].Tag())
	}

	ref, err := pool.ResolveFieldref(field)
	if err != nil {
		t.Fatalf("ResolveFieldref: %v", err)
	}
	if ref.ClassName != "java/lang/System" || ref.Name != "out" || ref.Descriptor != "Ljava/io/PrintStream;" {
		t.Errorf("ResolveFieldref: got %+v", ref)
	}

	mref, err := pool.ResolveMethodref(method)
	if err != nil {
		t.Fatalf("ResolveMethodref: %v", err)
	}
	if mref.ClassName != "java/io/PrintStream" || mref.Name != "println" || mref.Descriptor != "(Ljava/lang/String;)V" {
		t.Errorf("ResolveMethodref: got %+v", mref)
	}

	u, err := pool.StringUtf8(str)
	if err != nil {
		t.Fatalf("StringUtf8: %v", err)
	}
	if u.Value() != "Hello" {
		t.Errorf("StringUtf8: got %q, want %q", u.Value(), "Hello")
	}

	name, err := cf.ClassName()
	if err != nil || name != "Hello" {
		t.Errorf("ClassName: got %q, %v, want %q", name, err, "Hello")
	}
	super, err := cf.SuperClassName()
	if err != nil || super != "java/lang/Object" {
		t.Errorf("SuperClassName: got %q, %v, want %q", super, err, "java/lang/Object")
	}
}

func TestUtf8RoundTripsBytes(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{"empty", []byte{}},
		{"ascii", []byte("Hello, World!")},
		{"modified utf8 nul", []byte{'a', 0xC0, 0x80, 'b'}},
		{"multibyte", []byte("こんにちは")},
		{"invalid utf8 kept as is", []byte{0xFF, 0xFE, 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := classfiletest.New("T")
			idx := b.Raw(classfiletest.TagUtf8, append(classfiletest.U2(uint16(len(tt.raw))), tt.raw...)...)
			pool := mustParse(t, b).ConstantPool

			entry, err := pool.Utf8Entry(idx)
			if err != nil {
				t.Fatalf("Utf8Entry: %v", err)
			}
			if !bytes.Equal(entry.Bytes, tt.raw) {
				t.Errorf("bytes: got %x, want %x", entry.Bytes, tt.raw)
			}
			s, err := pool.Utf8(idx)
			if err != nil {
				t.Fatalf("Utf8: %v", err)
			}
			if s != string(tt.raw) {
				t.Errorf("Utf8: got %q, want %q", s, tt.raw)
			}
		})
	}
}

func TestConstantPoolForwardReferences(t *testing.T) {
	// Entries reference slots declared after them.
	data := classfiletest.Concat(
		[]byte{classfiletest.TagFieldref}, classfiletest.U2(2), classfiletest.U2(4), // #1
		[]byte{classfiletest.TagClass}, classfiletest.U2(3), // #2
		[]byte{classfiletest.TagUtf8}, classfiletest.U2(3), []byte("Foo"), // #3
		[]byte{classfiletest.TagNameAndType}, classfiletest.U2(5), classfiletest.U2(6), // #4
		[]byte{classfiletest.TagUtf8}, classfiletest.U2(3), []byte("bar"), // #5
		[]byte{classfiletest.TagUtf8}, classfiletest.U2(1), []byte("I"), // #6
	)
	c := NewCursor(data)
	pool, err := parseConstantPool(c, 7)
	if err != nil {
		t.Fatalf("parseConstantPool: %v", err)
	}
	if !c.AtEnd() {
		t.Errorf("cursor not at end: %d bytes remain", c.Remaining())
	}

	ref, err := pool.ResolveFieldref(1)
	if err != nil {
		t.Fatalf("ResolveFieldref: %v", err)
	}
	if ref.ClassName != "Foo" || ref.Name != "bar" || ref.Descriptor != "I" {
		t.Errorf("ResolveFieldref: got %+v", ref)
	}
}

func TestConstantPoolUndefinedTag(t *testing.T) {
	data := classfiletest.Concat(
		[]byte{classfiletest.TagUtf8}, classfiletest.U2(1), []byte("x"),
		[]byte{3}, classfiletest.U2(0), classfiletest.U2(42), // Integer is not supported
	)
	_, err := parseConstantPool(NewCursor(data), 3)
	if !errors.Is(err, vmerr.ErrUndefinedConstantTag) {
		t.Fatalf("got %v, want UndefinedConstantTag", err)
	}
	var e *vmerr.Error
	if !errors.As(err, &e) {
		t.Fatal("errors.As failed")
	}
	if e.Value != uint8(3) {
		t.Errorf("tag: got %v, want 3", e.Value)
	}
}

func TestConstantPoolTruncated(t *testing.T) {
	data := classfiletest.Concat([]byte{classfiletest.TagUtf8}, classfiletest.U2(10), []byte("short"))
	_, err := parseConstantPool(NewCursor(data), 2)
	if !errors.Is(err, vmerr.ErrOutOfBounds) {
		t.Fatalf("got %v, want OutOfBounds", err)
	}
}

func TestConstantPoolIndexOutOfRange(t *testing.T) {
	b := classfiletest.New("T")
	pool := mustParse(t, b).ConstantPool
	size := uint16(pool.Len())

	accessors := map[string]func(uint16) error{
		"Entry":       func(i uint16) error { _, err := pool.Entry(i); return err },
		"ExpectTag":   func(i uint16) error { _, err := pool.ExpectTag(i, TagUtf8); return err },
		"Utf8":        func(i uint16) error { _, err := pool.Utf8(i); return err },
		"Class":       func(i uint16) error { _, err := pool.Class(i); return err },
		"StringRef":   func(i uint16) error { _, err := pool.StringRef(i); return err },
		"Fieldref":    func(i uint16) error { _, err := pool.Fieldref(i); return err },
		"Methodref":   func(i uint16) error { _, err := pool.Methodref(i); return err },
		"NameAndType": func(i uint16) error { _, err := pool.NameAndType(i); return err },
	}

	for name, get := range accessors {
		for _, idx := range []uint16{0, size, size + 1, 0xFFFF} {
			if err := get(idx); !errors.Is(err, vmerr.ErrIndexOutOfRange) {
				t.Errorf("%s(%d): got %v, want IndexOutOfRange", name, idx, err)
			}
		}
	}
}

func TestConstantPoolUnexpectedTag(t *testing.T) {
	b := classfiletest.New("T")
	utf8 := b.Utf8("x")
	class := b.Class("T")
	pool := mustParse(t, b).ConstantPool

	tests := []struct {
		name string
		get  func() error
	}{
		{"Utf8 on Class", func() error { _, err := pool.Utf8(class); return err }},
		{"Class on Utf8", func() error { _, err := pool.Class(utf8); return err }},
		{"StringRef on Utf8", func() error { _, err := pool.StringRef(utf8); return err }},
		{"Fieldref on Class", func() error { _, err := pool.Fieldref(class); return err }},
		{"Methodref on Class", func() error { _, err := pool.Methodref(class); return err }},
		{"NameAndType on Utf8", func() error { _, err := pool.NameAndType(utf8); return err }},
		{"ExpectTag", func() error { _, err := pool.ExpectTag(utf8, TagMethodref); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.get()
			if !errors.Is(err, vmerr.ErrUnexpectedTag) {
				t.Fatalf("got %v, want UnexpectedTag", err)
			}
		})
	}

	_, err := pool.ExpectTag(utf8, TagMethodref)
	var e *vmerr.Error
	if !errors.As(err, &e) {
		t.Fatal("errors.As failed")
	}
	for _, want := range []string{"Methodref", "Utf8"} {
		if !bytes.Contains([]byte(e.Detail), []byte(want)) {
			t.Errorf("detail %q does not name %s", e.Detail, want)
		}
	}
}

func TestConstantPoolDanglingReference(t *testing.T) {
	b := classfiletest.New("T")
	bad := b.Raw(classfiletest.TagClass, classfiletest.U2(0x7FFF)...)
	pool := mustParse(t, b).ConstantPool

	if _, err := pool.Class(bad); err != nil {
		t.Fatalf("Class: decoding must not validate indices, got %v", err)
	}
	if _, err := pool.ClassName(bad); !errors.Is(err, vmerr.ErrIndexOutOfRange) {
		t.Errorf("ClassName: got %v, want IndexOutOfRange", err)
	}
}
