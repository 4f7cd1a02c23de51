package classfile

// AccessFlags is the access_flags bit set of a class or method.
type AccessFlags uint16

// Access flags
const (
	AccPublic AccessFlags = 0x0001
	AccStatic AccessFlags = 0x0008
	AccSuper  AccessFlags = 0x0020
)

func (f AccessFlags) IsPublic() bool { return f&AccPublic != 0 }
func (f AccessFlags) IsStatic() bool { return f&AccStatic != 0 }

// ClassFile represents a parsed .class file. Byte slices held by its
// structures alias the buffer it was parsed from.
type ClassFile struct {
	MinorVersion uint16
	MajorVersion uint16
	ConstantPool ConstantPool
	AccessFlags  AccessFlags
	ThisClass    uint16
	SuperClass   uint16
	// Interface and field records are skipped; only their counts are kept.
	InterfacesCount uint16
	FieldsCount     uint16
	Methods         []Method
	Attributes      []Attribute
}

// ClassName returns the fully qualified name of this class.
func (cf *ClassFile) ClassName() (string, error) {
	return cf.ConstantPool.ClassName(cf.ThisClass)
}

// SuperClassName returns the fully qualified name of the super class.
// Returns "" if there is none (SuperClass == 0).
func (cf *ClassFile) SuperClassName() (string, error) {
	if cf.SuperClass == 0 {
		return "", nil
	}
	return cf.ConstantPool.ClassName(cf.SuperClass)
}

// Method represents a method in a class file.
type Method struct {
	AccessFlags     AccessFlags
	NameIndex       uint16
	DescriptorIndex uint16
	Attributes      []Attribute
	// Code is decoded from the attribute named "Code", nil if absent.
	Code *Code
}

// Attribute is a raw attribute. Info aliases the class file buffer and is
// not interpreted unless the name identifies a known attribute.
type Attribute struct {
	NameIndex uint16
	Info      []byte
}

// Code represents the Code attribute of a method. Exception tables are not
// supported and must be empty.
type Code struct {
	MaxStack   uint16
	MaxLocals  uint16
	Code       []byte
	Attributes []Attribute
}
