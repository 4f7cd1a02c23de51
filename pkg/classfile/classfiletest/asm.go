package classfiletest

// Opcode bytes understood by the interpreter.
const (
	OpLdc           = 0x12
	OpReturn        = 0xB1
	OpGetstatic     = 0xB2
	OpInvokevirtual = 0xB6
)

// Getstatic encodes getstatic #index.
func Getstatic(index uint16) []byte {
	return append([]byte{OpGetstatic}, U2(index)...)
}

// Ldc encodes ldc #index.
func Ldc(index uint8) []byte {
	return []byte{OpLdc, index}
}

// Invokevirtual encodes invokevirtual #index.
func Invokevirtual(index uint16) []byte {
	return append([]byte{OpInvokevirtual}, U2(index)...)
}

// Return encodes return.
func Return() []byte {
	return []byte{OpReturn}
}

// Concat joins instruction encodings into one code buffer.
func Concat(instrs ...[]byte) []byte {
	var out []byte
	for _, in := range instrs {
		out = append(out, in...)
	}
	return out
}

// Println builds a class named className whose main method loads
// java/lang/System.out, pushes msg and invokes
// java/io/PrintStream.<method>(Ljava/lang/String;)V.
func Println(className, method, msg string) *Builder {
	b := New(className)
	out := b.Fieldref("java/lang/System", "out", "Ljava/io/PrintStream;")
	str := b.String(msg)
	m := b.Methodref("java/io/PrintStream", method, "(Ljava/lang/String;)V")
	b.AddMethod(Method{
		AccessFlags: 0x0009,
		Name:        "main",
		Descriptor:  "([Ljava/lang/String;)V",
		Code: &Code{
			MaxStack:  2,
			MaxLocals: 1,
			Bytecode: Concat(
				Getstatic(out),
				Ldc(uint8(str)),
				Invokevirtual(m),
				Return(),
			),
		},
	})
	return b
}
