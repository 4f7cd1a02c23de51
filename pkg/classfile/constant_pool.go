package classfile

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/daimatz/minijvm/pkg/vmerr"
)

// Tag identifies the kind of a constant pool entry.
type Tag uint8

// Constant pool tags
const (
	TagUnused      Tag = 0
	TagUtf8        Tag = 1
	TagClass       Tag = 7
	TagString      Tag = 8
	TagFieldref    Tag = 9
	TagMethodref   Tag = 10
	TagNameAndType Tag = 12
)

func (t Tag) String() string {
	switch t {
	case TagUnused:
		return "Unused"
	case TagUtf8:
		return "Utf8"
	case TagClass:
		return "Class"
	case TagString:
		return "String"
	case TagFieldref:
		return "Fieldref"
	case TagMethodref:
		return "Methodref"
	case TagNameAndType:
		return "NameAndType"
	default:
		return fmt.Sprintf("Tag(%d)", uint8(t))
	}
}

// Constant is a constant pool entry. The set of implementations is closed;
// switch on the concrete type to handle each variant.
type Constant interface {
	Tag() Tag
	fmt.Stringer
	constant()
}

// ConstantUnused occupies slot 0 of every pool.
type ConstantUnused struct{}

func (*ConstantUnused) Tag() Tag       { return TagUnused }
func (*ConstantUnused) String() string { return "Unused" }
func (*ConstantUnused) constant()      {}

// ConstantUtf8 holds modified UTF-8 bytes. Bytes aliases the class file buffer.
type ConstantUtf8 struct {
	Bytes []byte
}

func (*ConstantUtf8) Tag() Tag         { return TagUtf8 }
func (c *ConstantUtf8) String() string { return fmt.Sprintf("Utf8 %q", c.Bytes) }
func (*ConstantUtf8) constant()        {}

// Value returns the entry's bytes as a string.
func (c *ConstantUtf8) Value() string { return string(c.Bytes) }

type ConstantClass struct {
	NameIndex uint16
}

func (*ConstantClass) Tag() Tag         { return TagClass }
func (c *ConstantClass) String() string { return fmt.Sprintf("Class #%d", c.NameIndex) }
func (*ConstantClass) constant()        {}

type ConstantString struct {
	StringIndex uint16
}

func (*ConstantString) Tag() Tag         { return TagString }
func (c *ConstantString) String() string { return fmt.Sprintf("String #%d", c.StringIndex) }
func (*ConstantString) constant()        {}

type ConstantFieldref struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

func (*ConstantFieldref) Tag() Tag { return TagFieldref }
func (c *ConstantFieldref) String() string {
	return fmt.Sprintf("Fieldref #%d.#%d", c.ClassIndex, c.NameAndTypeIndex)
}
func (*ConstantFieldref) constant() {}

type ConstantMethodref struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

func (*ConstantMethodref) Tag() Tag { return TagMethodref }
func (c *ConstantMethodref) String() string {
	return fmt.Sprintf("Methodref #%d.#%d", c.ClassIndex, c.NameAndTypeIndex)
}
func (*ConstantMethodref) constant() {}

type ConstantNameAndType struct {
	NameIndex       uint16
	DescriptorIndex uint16
}

func (*ConstantNameAndType) Tag() Tag { return TagNameAndType }
func (c *ConstantNameAndType) String() string {
	return fmt.Sprintf("NameAndType #%d:#%d", c.NameIndex, c.DescriptorIndex)
}
func (*ConstantNameAndType) constant() {}

// ConstantPool is the decoded symbol table. It is 1-indexed: slot 0 holds
// ConstantUnused. It is never modified after decoding.
type ConstantPool []Constant

// parseConstantPool reads count-1 entries from c. Indices stored in the
// entries are not checked here; resolution validates them on use.
func parseConstantPool(c *Cursor, count uint16) (ConstantPool, error) {
	if count == 0 {
		return nil, vmerr.New(vmerr.PhaseDecode, vmerr.KindIndexOutOfRange).
			Value(count).
			Detail("constant pool count must be at least 1").
			Build()
	}

	pool := make(ConstantPool, count)
	pool[0] = &ConstantUnused{}

	for i := uint16(1); i < count; i++ {
		tag, err := c.ReadU1()
		if err != nil {
			return nil, fmt.Errorf("reading constant pool tag at index %d: %w", i, err)
		}

		switch Tag(tag) {
		case TagUtf8:
			length, err := c.ReadU2()
			if err != nil {
				return nil, fmt.Errorf("reading Utf8 length at index %d: %w", i, err)
			}
			b, err := c.Skip(int(length))
			if err != nil {
				return nil, fmt.Errorf("reading Utf8 bytes at index %d: %w", i, err)
			}
			pool[i] = &ConstantUtf8{Bytes: b}

		case TagClass:
			nameIndex, err := c.ReadU2()
			if err != nil {
				return nil, fmt.Errorf("reading Class at index %d: %w", i, err)
			}
			pool[i] = &ConstantClass{NameIndex: nameIndex}

		case TagString:
			stringIndex, err := c.ReadU2()
			if err != nil {
				return nil, fmt.Errorf("reading String at index %d: %w", i, err)
			}
			pool[i] = &ConstantString{StringIndex: stringIndex}

		case TagFieldref, TagMethodref:
			classIndex, natIndex, err := readIndexPair(c)
			if err != nil {
				return nil, fmt.Errorf("reading %s at index %d: %w", Tag(tag), i, err)
			}
			if Tag(tag) == TagFieldref {
				pool[i] = &ConstantFieldref{ClassIndex: classIndex, NameAndTypeIndex: natIndex}
			} else {
				pool[i] = &ConstantMethodref{ClassIndex: classIndex, NameAndTypeIndex: natIndex}
			}

		case TagNameAndType:
			nameIndex, descIndex, err := readIndexPair(c)
			if err != nil {
				return nil, fmt.Errorf("reading NameAndType at index %d: %w", i, err)
			}
			pool[i] = &ConstantNameAndType{NameIndex: nameIndex, DescriptorIndex: descIndex}

		default:
			return nil, vmerr.UndefinedConstantTag(i, tag)
		}
	}

	Logger().Debug("constant pool decoded", zap.Int("count", int(count)))
	return pool, nil
}

func readIndexPair(c *Cursor) (uint16, uint16, error) {
	a, err := c.ReadU2()
	if err != nil {
		return 0, 0, err
	}
	b, err := c.ReadU2()
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}
