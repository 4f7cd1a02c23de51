// Package classfiletest assembles class files in memory for tests.
//
// A Builder interns constant pool entries as they are requested and lays out
// the remaining structures in class file order when Bytes is called:
//
//	b := classfiletest.New("Hello")
//	out := b.Fieldref("java/lang/System", "out", "Ljava/io/PrintStream;")
//	msg := b.String("Hello")
//	println := b.Methodref("java/io/PrintStream", "println", "(Ljava/lang/String;)V")
//	b.AddMethod(classfiletest.Method{
//		Name:       "main",
//		Descriptor: "([Ljava/lang/String;)V",
//		Code: &classfiletest.Code{MaxStack: 2, MaxLocals: 1, Bytecode: classfiletest.Concat(
//			classfiletest.Getstatic(out),
//			classfiletest.Ldc(uint8(msg)),
//			classfiletest.Invokevirtual(println),
//			classfiletest.Return(),
//		)},
//	})
//	data := b.Bytes()
package classfiletest

import (
	"encoding/binary"
)

// Constant pool tag bytes.
const (
	TagUtf8        = 1
	TagClass       = 7
	TagString      = 8
	TagFieldref    = 9
	TagMethodref   = 10
	TagNameAndType = 12
)

// Attr is a raw attribute.
type Attr struct {
	Name string
	Info []byte
}

// Code describes a Code attribute. ExceptionTable entries are written
// verbatim as start_pc, end_pc, handler_pc, catch_type.
type Code struct {
	MaxStack       uint16
	MaxLocals      uint16
	Bytecode       []byte
	ExceptionTable [][4]uint16
	Attributes     []Attr
}

// Method describes a method record. When Code is set it is emitted as the
// first attribute, ahead of Attributes.
type Method struct {
	AccessFlags uint16
	Name        string
	Descriptor  string
	Code        *Code
	Attributes  []Attr
}

// Builder accumulates the parts of a class file.
type Builder struct {
	MinorVersion uint16
	MajorVersion uint16
	AccessFlags  uint16

	pool      [][]byte
	interned  map[string]uint16
	thisClass uint16
	super     uint16

	interfaces []uint16
	fields     []Method
	methods    []Method
	attributes []Attr
	trailing   []byte
}

// New creates a Builder for a public class named className extending
// java/lang/Object.
func New(className string) *Builder {
	b := &Builder{
		MajorVersion: 52,
		AccessFlags:  0x0021,
		interned:     make(map[string]uint16),
	}
	b.thisClass = b.Class(className)
	b.super = b.Class("java/lang/Object")
	return b
}

// PoolCount returns the constant_pool_count that Bytes will write.
func (b *Builder) PoolCount() uint16 {
	return uint16(len(b.pool) + 1)
}

// Raw appends an entry with an arbitrary tag and payload and returns its
// index. It is not interned, so it can express malformed or forward
// referencing pools.
func (b *Builder) Raw(tag byte, payload ...byte) uint16 {
	entry := append([]byte{tag}, payload...)
	b.pool = append(b.pool, entry)
	return uint16(len(b.pool))
}

func (b *Builder) intern(key string, tag byte, payload []byte) uint16 {
	if idx, ok := b.interned[key]; ok {
		return idx
	}
	idx := b.Raw(tag, payload...)
	b.interned[key] = idx
	return idx
}

// Utf8 interns a Utf8 entry.
func (b *Builder) Utf8(s string) uint16 {
	return b.intern("utf8:"+s, TagUtf8, append(U2(uint16(len(s))), s...))
}

// Class interns a Class entry naming name.
func (b *Builder) Class(name string) uint16 {
	nameIdx := b.Utf8(name)
	return b.intern("class:"+name, TagClass, U2(nameIdx))
}

// String interns a String entry for s.
func (b *Builder) String(s string) uint16 {
	strIdx := b.Utf8(s)
	return b.intern("string:"+s, TagString, U2(strIdx))
}

// NameAndType interns a NameAndType entry.
func (b *Builder) NameAndType(name, descriptor string) uint16 {
	n := b.Utf8(name)
	d := b.Utf8(descriptor)
	return b.intern("nat:"+name+":"+descriptor, TagNameAndType, append(U2(n), U2(d)...))
}

// Fieldref interns a Fieldref entry.
func (b *Builder) Fieldref(class, name, descriptor string) uint16 {
	c := b.Class(class)
	nat := b.NameAndType(name, descriptor)
	return b.intern("field:"+class+"."+name+":"+descriptor, TagFieldref, append(U2(c), U2(nat)...))
}

// Methodref interns a Methodref entry.
func (b *Builder) Methodref(class, name, descriptor string) uint16 {
	c := b.Class(class)
	nat := b.NameAndType(name, descriptor)
	return b.intern("method:"+class+"."+name+":"+descriptor, TagMethodref, append(U2(c), U2(nat)...))
}

// AddInterface records an implemented interface.
func (b *Builder) AddInterface(name string) {
	b.interfaces = append(b.interfaces, b.Class(name))
}

// AddField records a field. Fields share the method record layout.
func (b *Builder) AddField(f Method) {
	b.Utf8(f.Name)
	b.Utf8(f.Descriptor)
	for _, a := range f.Attributes {
		b.Utf8(a.Name)
	}
	b.fields = append(b.fields, f)
}

// AddMethod records a method.
func (b *Builder) AddMethod(m Method) {
	b.Utf8(m.Name)
	b.Utf8(m.Descriptor)
	if m.Code != nil {
		b.Utf8("Code")
		for _, a := range m.Code.Attributes {
			b.Utf8(a.Name)
		}
	}
	for _, a := range m.Attributes {
		b.Utf8(a.Name)
	}
	b.methods = append(b.methods, m)
}

// AddAttribute records a class-level attribute.
func (b *Builder) AddAttribute(a Attr) {
	b.Utf8(a.Name)
	b.attributes = append(b.attributes, a)
}

// AppendTrailing adds bytes after the class attributes.
func (b *Builder) AppendTrailing(p ...byte) {
	b.trailing = append(b.trailing, p...)
}

// Bytes serializes the class file.
func (b *Builder) Bytes() []byte {
	out := U4(0xCAFEBABE)
	out = append(out, U2(b.MinorVersion)...)
	out = append(out, U2(b.MajorVersion)...)

	out = append(out, U2(b.PoolCount())...)
	for _, e := range b.pool {
		out = append(out, e...)
	}

	out = append(out, U2(b.AccessFlags)...)
	out = append(out, U2(b.thisClass)...)
	out = append(out, U2(b.super)...)

	out = append(out, U2(uint16(len(b.interfaces)))...)
	for _, i := range b.interfaces {
		out = append(out, U2(i)...)
	}

	out = append(out, U2(uint16(len(b.fields)))...)
	for _, f := range b.fields {
		out = append(out, b.member(f)...)
	}

	out = append(out, U2(uint16(len(b.methods)))...)
	for _, m := range b.methods {
		out = append(out, b.member(m)...)
	}

	out = append(out, b.attrs(b.attributes)...)
	return append(out, b.trailing...)
}

func (b *Builder) member(m Method) []byte {
	out := U2(m.AccessFlags)
	out = append(out, U2(b.Utf8(m.Name))...)
	out = append(out, U2(b.Utf8(m.Descriptor))...)

	attrs := m.Attributes
	if m.Code != nil {
		attrs = append([]Attr{{Name: "Code", Info: b.CodeInfo(*m.Code)}}, attrs...)
	}
	return append(out, b.attrs(attrs)...)
}

func (b *Builder) attrs(attrs []Attr) []byte {
	out := U2(uint16(len(attrs)))
	for _, a := range attrs {
		out = append(out, U2(b.Utf8(a.Name))...)
		out = append(out, U4(uint32(len(a.Info)))...)
		out = append(out, a.Info...)
	}
	return out
}

// CodeInfo encodes the payload of a Code attribute.
func (b *Builder) CodeInfo(c Code) []byte {
	out := U2(c.MaxStack)
	out = append(out, U2(c.MaxLocals)...)
	out = append(out, U4(uint32(len(c.Bytecode)))...)
	out = append(out, c.Bytecode...)
	out = append(out, U2(uint16(len(c.ExceptionTable)))...)
	for _, e := range c.ExceptionTable {
		for _, v := range e {
			out = append(out, U2(v)...)
		}
	}
	return append(out, b.attrs(c.Attributes)...)
}

// U2 encodes v big-endian.
func U2(v uint16) []byte {
	return binary.BigEndian.AppendUint16(nil, v)
}

// U4 encodes v big-endian.
func U4(v uint32) []byte {
	return binary.BigEndian.AppendUint32(nil, v)
}
