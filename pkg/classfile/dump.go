package classfile

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// cborEncMode uses canonical mode so equal classes encode to equal bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("classfile: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// SnapshotConstant is the serialized form of one constant pool entry.
// A and B hold the entry's index operands in declaration order.
type SnapshotConstant struct {
	Tag   uint8  `cbor:"tag"`
	A     uint16 `cbor:"a,omitempty"`
	B     uint16 `cbor:"b,omitempty"`
	Bytes []byte `cbor:"bytes,omitempty"`
}

// SnapshotAttribute is the serialized form of an attribute.
type SnapshotAttribute struct {
	Name string `cbor:"name"`
	Info []byte `cbor:"info"`
}

// SnapshotMethod is the serialized form of a method.
type SnapshotMethod struct {
	AccessFlags uint16              `cbor:"access_flags"`
	Name        string              `cbor:"name"`
	Descriptor  string              `cbor:"descriptor"`
	Attributes  []SnapshotAttribute `cbor:"attributes"`
	MaxStack    uint16              `cbor:"max_stack,omitempty"`
	Code        []byte              `cbor:"code,omitempty"`
}

// Snapshot is a self-contained, serializable view of a decoded class.
type Snapshot struct {
	MinorVersion uint16             `cbor:"minor"`
	MajorVersion uint16             `cbor:"major"`
	ClassName    string             `cbor:"class"`
	Pool         []SnapshotConstant `cbor:"pool"`
	Methods      []SnapshotMethod   `cbor:"methods"`
}

// Snapshot builds a Snapshot of cf. Names are resolved through the pool, so
// a class with dangling name indices fails here.
func (cf *ClassFile) Snapshot() (*Snapshot, error) {
	className, err := cf.ClassName()
	if err != nil {
		return nil, fmt.Errorf("resolving this_class: %w", err)
	}
	s := &Snapshot{
		MinorVersion: cf.MinorVersion,
		MajorVersion: cf.MajorVersion,
		ClassName:    className,
		Pool:         make([]SnapshotConstant, len(cf.ConstantPool)),
		Methods:      make([]SnapshotMethod, 0, len(cf.Methods)),
	}

	for i, entry := range cf.ConstantPool {
		sc := SnapshotConstant{Tag: uint8(entry.Tag())}
		switch c := entry.(type) {
		case *ConstantUnused:
		case *ConstantUtf8:
			sc.Bytes = c.Bytes
		case *ConstantClass:
			sc.A = c.NameIndex
		case *ConstantString:
			sc.A = c.StringIndex
		case *ConstantFieldref:
			sc.A, sc.B = c.ClassIndex, c.NameAndTypeIndex
		case *ConstantMethodref:
			sc.A, sc.B = c.ClassIndex, c.NameAndTypeIndex
		case *ConstantNameAndType:
			sc.A, sc.B = c.NameIndex, c.DescriptorIndex
		}
		s.Pool[i] = sc
	}

	for i := range cf.Methods {
		m := &cf.Methods[i]
		name, err := cf.MethodName(m)
		if err != nil {
			return nil, fmt.Errorf("resolving method %d name: %w", i, err)
		}
		desc, err := cf.MethodDescriptor(m)
		if err != nil {
			return nil, fmt.Errorf("resolving method %d descriptor: %w", i, err)
		}
		sm := SnapshotMethod{
			AccessFlags: uint16(m.AccessFlags),
			Name:        name,
			Descriptor:  desc,
			Attributes:  make([]SnapshotAttribute, 0, len(m.Attributes)),
		}
		for j, attr := range m.Attributes {
			attrName, err := cf.ConstantPool.Utf8(attr.NameIndex)
			if err != nil {
				return nil, fmt.Errorf("resolving method %d attribute %d name: %w", i, j, err)
			}
			sm.Attributes = append(sm.Attributes, SnapshotAttribute{Name: attrName, Info: attr.Info})
		}
		if m.Code != nil {
			sm.MaxStack = m.Code.MaxStack
			sm.Code = m.Code.Code
		}
		s.Methods = append(s.Methods, sm)
	}
	return s, nil
}

// MarshalCanonical serializes cf's Snapshot to canonical CBOR.
func MarshalCanonical(cf *ClassFile) ([]byte, error) {
	s, err := cf.Snapshot()
	if err != nil {
		return nil, err
	}
	return cborEncMode.Marshal(s)
}

// UnmarshalSnapshot deserializes a Snapshot from CBOR bytes.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("classfile: unmarshal snapshot: %w", err)
	}
	return &s, nil
}
