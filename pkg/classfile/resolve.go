package classfile

import (
	"github.com/daimatz/minijvm/pkg/vmerr"
)

// Len returns the declared pool size, including slot 0.
func (cp ConstantPool) Len() int { return len(cp) }

// Entry returns the entry at index. Index 0 and indices past the end fail
// with IndexOutOfRange.
func (cp ConstantPool) Entry(index uint16) (Constant, error) {
	if index == 0 || int(index) >= len(cp) {
		return nil, vmerr.IndexOutOfRange(vmerr.PhaseResolve, index, len(cp))
	}
	return cp[index], nil
}

// ExpectTag returns the entry at index if its tag is tag.
func (cp ConstantPool) ExpectTag(index uint16, tag Tag) (Constant, error) {
	entry, err := cp.Entry(index)
	if err != nil {
		return nil, err
	}
	if entry.Tag() != tag {
		return nil, vmerr.UnexpectedTag(vmerr.PhaseResolve, index, tag, entry.Tag())
	}
	return entry, nil
}

func expect[T Constant](cp ConstantPool, index uint16, tag Tag) (T, error) {
	var zero T
	entry, err := cp.ExpectTag(index, tag)
	if err != nil {
		return zero, err
	}
	return entry.(T), nil
}

// Utf8Entry returns the Utf8 entry at index.
func (cp ConstantPool) Utf8Entry(index uint16) (*ConstantUtf8, error) {
	return expect[*ConstantUtf8](cp, index, TagUtf8)
}

// Utf8 returns the Utf8 string at the given constant pool index.
func (cp ConstantPool) Utf8(index uint16) (string, error) {
	u, err := cp.Utf8Entry(index)
	if err != nil {
		return "", err
	}
	return u.Value(), nil
}

// Class returns the Class entry at index.
func (cp ConstantPool) Class(index uint16) (*ConstantClass, error) {
	return expect[*ConstantClass](cp, index, TagClass)
}

// StringRef returns the String entry at index.
func (cp ConstantPool) StringRef(index uint16) (*ConstantString, error) {
	return expect[*ConstantString](cp, index, TagString)
}

// Fieldref returns the Fieldref entry at index.
func (cp ConstantPool) Fieldref(index uint16) (*ConstantFieldref, error) {
	return expect[*ConstantFieldref](cp, index, TagFieldref)
}

// Methodref returns the Methodref entry at index.
func (cp ConstantPool) Methodref(index uint16) (*ConstantMethodref, error) {
	return expect[*ConstantMethodref](cp, index, TagMethodref)
}

// NameAndType returns the NameAndType entry at index.
func (cp ConstantPool) NameAndType(index uint16) (*ConstantNameAndType, error) {
	return expect[*ConstantNameAndType](cp, index, TagNameAndType)
}

// ClassName returns the class name referenced by a Class entry.
func (cp ConstantPool) ClassName(index uint16) (string, error) {
	class, err := cp.Class(index)
	if err != nil {
		return "", err
	}
	return cp.Utf8(class.NameIndex)
}

// StringUtf8 follows a String entry to the Utf8 entry it names.
func (cp ConstantPool) StringUtf8(index uint16) (*ConstantUtf8, error) {
	s, err := cp.StringRef(index)
	if err != nil {
		return nil, err
	}
	return cp.Utf8Entry(s.StringIndex)
}

// NameAndTypeStrings returns the name and descriptor of a NameAndType entry.
func (cp ConstantPool) NameAndTypeStrings(index uint16) (name, descriptor string, err error) {
	nat, err := cp.NameAndType(index)
	if err != nil {
		return "", "", err
	}
	if name, err = cp.Utf8(nat.NameIndex); err != nil {
		return "", "", err
	}
	if descriptor, err = cp.Utf8(nat.DescriptorIndex); err != nil {
		return "", "", err
	}
	return name, descriptor, nil
}

// MemberRef is a resolved Fieldref or Methodref.
type MemberRef struct {
	ClassName  string
	Name       string
	Descriptor string
}

func (cp ConstantPool) resolveMember(classIndex, natIndex uint16) (*MemberRef, error) {
	className, err := cp.ClassName(classIndex)
	if err != nil {
		return nil, err
	}
	name, descriptor, err := cp.NameAndTypeStrings(natIndex)
	if err != nil {
		return nil, err
	}
	return &MemberRef{ClassName: className, Name: name, Descriptor: descriptor}, nil
}

// ResolveFieldref resolves a Fieldref entry to its owning class path, field
// name and descriptor.
func (cp ConstantPool) ResolveFieldref(index uint16) (*MemberRef, error) {
	ref, err := cp.Fieldref(index)
	if err != nil {
		return nil, err
	}
	return cp.resolveMember(ref.ClassIndex, ref.NameAndTypeIndex)
}

// ResolveMethodref resolves a Methodref entry.
func (cp ConstantPool) ResolveMethodref(index uint16) (*MemberRef, error) {
	ref, err := cp.Methodref(index)
	if err != nil {
		return nil, err
	}
	return cp.resolveMember(ref.ClassIndex, ref.NameAndTypeIndex)
}

