package classfile

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/daimatz/minijvm/pkg/vmerr"
)

// Magic is the first four bytes of every class file.
const Magic = 0xCAFEBABE

// AttrCode is the name of the attribute holding a method's bytecode.
const AttrCode = "Code"

// ParseFile reads and parses a .class file from the given path.
func ParseFile(path string) (*ClassFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading class file %s: %w", path, err)
	}
	return Parse(data)
}

// ParseReader reads r to the end and parses the result.
func ParseReader(r io.Reader) (*ClassFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading class file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a class file held in data. The returned structures alias
// data, which must not be modified afterwards.
func Parse(data []byte) (*ClassFile, error) {
	c := NewCursor(data)
	cf := &ClassFile{}

	magic, err := c.ReadU4()
	if err != nil {
		return nil, fmt.Errorf("reading magic number: %w", err)
	}
	if magic != Magic {
		return nil, vmerr.New(vmerr.PhaseDecode, vmerr.KindBadMagic).
			Value(magic).
			Detail("invalid magic number: 0x%X (expected 0xCAFEBABE)", magic).
			Build()
	}

	if cf.MinorVersion, err = c.ReadU2(); err != nil {
		return nil, fmt.Errorf("reading minor version: %w", err)
	}
	if cf.MajorVersion, err = c.ReadU2(); err != nil {
		return nil, fmt.Errorf("reading major version: %w", err)
	}

	cpCount, err := c.ReadU2()
	if err != nil {
		return nil, fmt.Errorf("reading constant pool count: %w", err)
	}
	if cf.ConstantPool, err = parseConstantPool(c, cpCount); err != nil {
		return nil, fmt.Errorf("parsing constant pool: %w", err)
	}

	flags, err := c.ReadU2()
	if err != nil {
		return nil, fmt.Errorf("reading access flags: %w", err)
	}
	cf.AccessFlags = AccessFlags(flags)
	if cf.ThisClass, err = c.ReadU2(); err != nil {
		return nil, fmt.Errorf("reading this_class: %w", err)
	}
	if cf.SuperClass, err = c.ReadU2(); err != nil {
		return nil, fmt.Errorf("reading super_class: %w", err)
	}

	// Interfaces are fixed-width u2 entries.
	if cf.InterfacesCount, err = c.ReadU2(); err != nil {
		return nil, fmt.Errorf("reading interfaces count: %w", err)
	}
	if _, err := c.Skip(2 * int(cf.InterfacesCount)); err != nil {
		return nil, fmt.Errorf("skipping interfaces: %w", err)
	}

	if cf.FieldsCount, err = c.ReadU2(); err != nil {
		return nil, fmt.Errorf("reading fields count: %w", err)
	}
	for i := uint16(0); i < cf.FieldsCount; i++ {
		if _, err := parseMember(c); err != nil {
			return nil, fmt.Errorf("skipping field %d: %w", i, err)
		}
	}

	methodsCount, err := c.ReadU2()
	if err != nil {
		return nil, fmt.Errorf("reading methods count: %w", err)
	}
	if cf.Methods, err = parseMethods(c, cf.ConstantPool, methodsCount); err != nil {
		return nil, fmt.Errorf("parsing methods: %w", err)
	}

	if cf.Attributes, err = parseAttributes(c); err != nil {
		return nil, fmt.Errorf("parsing class attributes: %w", err)
	}

	if !c.AtEnd() {
		return nil, vmerr.TrailingData("class attributes", c.Remaining())
	}
	return cf, nil
}

// parseMember reads the shape shared by field and method records.
func parseMember(c *Cursor) (Method, error) {
	var m Method
	flags, err := c.ReadU2()
	if err != nil {
		return m, fmt.Errorf("reading access flags: %w", err)
	}
	m.AccessFlags = AccessFlags(flags)
	if m.NameIndex, err = c.ReadU2(); err != nil {
		return m, fmt.Errorf("reading name index: %w", err)
	}
	if m.DescriptorIndex, err = c.ReadU2(); err != nil {
		return m, fmt.Errorf("reading descriptor index: %w", err)
	}
	if m.Attributes, err = parseAttributes(c); err != nil {
		return m, err
	}
	return m, nil
}

func parseMethods(c *Cursor, pool ConstantPool, count uint16) ([]Method, error) {
	methods := make([]Method, 0, count)
	for i := uint16(0); i < count; i++ {
		m, err := parseMember(c)
		if err != nil {
			return nil, fmt.Errorf("method %d: %w", i, err)
		}

		for _, attr := range m.Attributes {
			name, err := pool.Utf8(attr.NameIndex)
			if err != nil {
				return nil, fmt.Errorf("resolving method %d attribute name: %w", i, err)
			}
			if name != AttrCode {
				continue
			}
			code, err := ParseCode(attr.Info)
			if err != nil {
				return nil, fmt.Errorf("parsing Code attribute of method %d: %w", i, err)
			}
			m.Code = code
			break
		}

		Logger().Debug("method decoded",
			zap.Int("index", int(i)),
			zap.Uint16("name_index", m.NameIndex),
			zap.Int("attributes", len(m.Attributes)),
			zap.Bool("has_code", m.Code != nil))
		methods = append(methods, m)
	}
	return methods, nil
}

// parseAttributes reads an attributes_count followed by that many records.
func parseAttributes(c *Cursor) ([]Attribute, error) {
	count, err := c.ReadU2()
	if err != nil {
		return nil, fmt.Errorf("reading attributes count: %w", err)
	}
	attrs := make([]Attribute, 0, count)
	for i := uint16(0); i < count; i++ {
		nameIndex, err := c.ReadU2()
		if err != nil {
			return nil, fmt.Errorf("reading attribute %d name index: %w", i, err)
		}
		length, err := c.ReadU4()
		if err != nil {
			return nil, fmt.Errorf("reading attribute %d length: %w", i, err)
		}
		info, err := c.Skip(int(length))
		if err != nil {
			return nil, fmt.Errorf("reading attribute %d data: %w", i, err)
		}
		attrs = append(attrs, Attribute{NameIndex: nameIndex, Info: info})
	}
	return attrs, nil
}

// ParseCode decodes the payload of a Code attribute. A non-empty exception
// table fails with UnsupportedFeature.
func ParseCode(info []byte) (*Code, error) {
	c := NewCursor(info)
	code := &Code{}

	var err error
	if code.MaxStack, err = c.ReadU2(); err != nil {
		return nil, fmt.Errorf("reading max_stack: %w", err)
	}
	if code.MaxLocals, err = c.ReadU2(); err != nil {
		return nil, fmt.Errorf("reading max_locals: %w", err)
	}
	codeLength, err := c.ReadU4()
	if err != nil {
		return nil, fmt.Errorf("reading code_length: %w", err)
	}
	if code.Code, err = c.Skip(int(codeLength)); err != nil {
		return nil, fmt.Errorf("reading code: %w", err)
	}

	exTableLen, err := c.ReadU2()
	if err != nil {
		return nil, fmt.Errorf("reading exception_table_length: %w", err)
	}
	if exTableLen != 0 {
		return nil, vmerr.New(vmerr.PhaseDecode, vmerr.KindUnsupportedFeature).
			Value(exTableLen).
			Detail("exception table with %d entries", exTableLen).
			Build()
	}

	if code.Attributes, err = parseAttributes(c); err != nil {
		return nil, fmt.Errorf("parsing Code attributes: %w", err)
	}
	if !c.AtEnd() {
		return nil, vmerr.TrailingData("Code attribute", c.Remaining())
	}
	return code, nil
}

// MethodName returns the resolved name of m.
func (cf *ClassFile) MethodName(m *Method) (string, error) {
	return cf.ConstantPool.Utf8(m.NameIndex)
}

// MethodDescriptor returns the resolved descriptor of m.
func (cf *ClassFile) MethodDescriptor(m *Method) (string, error) {
	return cf.ConstantPool.Utf8(m.DescriptorIndex)
}

// FindMethodByName returns the first method whose name is name. It fails
// with MissingMethod if there is none.
func (cf *ClassFile) FindMethodByName(name string) (*Method, error) {
	for i := range cf.Methods {
		got, err := cf.MethodName(&cf.Methods[i])
		if err != nil {
			return nil, fmt.Errorf("resolving method %d name: %w", i, err)
		}
		if got == name {
			return &cf.Methods[i], nil
		}
	}
	return nil, vmerr.New(vmerr.PhaseResolve, vmerr.KindMissingMethod).
		Name(name).
		Detail("no such method").
		Build()
}

// FindAttribute returns the first attribute of m named name. It fails with
// MissingAttribute if there is none.
func (cf *ClassFile) FindAttribute(m *Method, name string) (*Attribute, error) {
	for i := range m.Attributes {
		got, err := cf.ConstantPool.Utf8(m.Attributes[i].NameIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving attribute %d name: %w", i, err)
		}
		if got == name {
			return &m.Attributes[i], nil
		}
	}
	return nil, vmerr.New(vmerr.PhaseResolve, vmerr.KindMissingAttribute).
		Name(name).
		Detail("method has no such attribute").
		Build()
}

// MethodCode returns the decoded Code of m, failing with MissingAttribute
// if the method has none.
func (cf *ClassFile) MethodCode(m *Method) (*Code, error) {
	if m.Code != nil {
		return m.Code, nil
	}
	attr, err := cf.FindAttribute(m, AttrCode)
	if err != nil {
		return nil, err
	}
	return ParseCode(attr.Info)
}
