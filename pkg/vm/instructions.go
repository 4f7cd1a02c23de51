package vm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/daimatz/minijvm/pkg/classfile"
	"github.com/daimatz/minijvm/pkg/native"
	"github.com/daimatz/minijvm/pkg/vmerr"
)

// Opcode is a bytecode instruction byte.
type Opcode byte

// Opcodes
const (
	OpLdc           Opcode = 0x12
	OpReturn        Opcode = 0xB1
	OpGetstatic     Opcode = 0xB2
	OpInvokevirtual Opcode = 0xB6
)

func (op Opcode) String() string {
	switch op {
	case OpLdc:
		return "ldc"
	case OpReturn:
		return "return"
	case OpGetstatic:
		return "getstatic"
	case OpInvokevirtual:
		return "invokevirtual"
	default:
		return fmt.Sprintf("0x%02X", byte(op))
	}
}

// executeInstruction executes a single bytecode instruction whose opcode
// byte has already been consumed. On failure the operand stack is left as
// it was before the instruction.
func (vm *VM) executeInstruction(frame *Frame, opcode Opcode) error {
	switch opcode {
	case OpGetstatic:
		index, err := frame.ReadU16()
		if err != nil {
			return err
		}
		entry, err := vm.ClassFile.ConstantPool.Entry(index)
		if err != nil {
			return err
		}
		// The entry is resolved where it is used, not here.
		return frame.Push(Operand{Index: index, Entry: entry})

	case OpLdc:
		index, err := frame.ReadU8()
		if err != nil {
			return err
		}
		return vm.executeLdc(frame, uint16(index))

	case OpInvokevirtual:
		return vm.executeInvokevirtual(frame)

	case OpReturn:
		frame.Finished = true
		frame.Clear()
		return nil

	default:
		return vmerr.New(vmerr.PhaseExecute, vmerr.KindUnknownOpcode).
			Value(byte(opcode)).
			Detail("opcode 0x%02X at pc %d", byte(opcode), frame.PC()-1).
			Build()
	}
}

// executeLdc handles the ldc instruction. Only String constants are
// supported; the Utf8 entry they name is pushed.
func (vm *VM) executeLdc(frame *Frame, index uint16) error {
	pool := vm.ClassFile.ConstantPool
	s, err := pool.StringRef(index)
	if err != nil {
		return fmt.Errorf("ldc: %w", err)
	}
	utf8, err := pool.Utf8Entry(s.StringIndex)
	if err != nil {
		return fmt.Errorf("ldc: resolving string: %w", err)
	}
	return frame.Push(Operand{Index: s.StringIndex, Entry: utf8})
}

// executeInvokevirtual handles the invokevirtual instruction. The call
// target is found through the native registry from the static field
// reference under the arguments, which is how System.out.println reaches
// the host.
func (vm *VM) executeInvokevirtual(frame *Frame) error {
	index, err := frame.ReadU16()
	if err != nil {
		return err
	}
	pool := vm.ClassFile.ConstantPool

	mref, err := pool.Methodref(index)
	if err != nil {
		return fmt.Errorf("invokevirtual: %w", err)
	}
	methodName, descriptor, err := pool.NameAndTypeStrings(mref.NameAndTypeIndex)
	if err != nil {
		return fmt.Errorf("invokevirtual: resolving method: %w", err)
	}
	argc := classfile.ArgCount(descriptor)

	// Arguments and context stay on the stack until the target is known.
	operands, err := frame.Peek(argc + 1)
	if err != nil {
		return fmt.Errorf("invokevirtual %s%s: %w", methodName, descriptor, err)
	}
	context, args := operands[0], operands[1:]

	if context.Entry.Tag() != classfile.TagFieldref {
		return vmerr.UnexpectedTag(vmerr.PhaseExecute, context.Index, classfile.TagFieldref, context.Entry.Tag())
	}
	field, err := pool.ResolveFieldref(context.Index)
	if err != nil {
		return fmt.Errorf("invokevirtual: resolving receiver: %w", err)
	}

	method, err := vm.Natives.Lookup(field.ClassName, field.Name, methodName)
	if err != nil {
		return err
	}

	values := make([]native.Value, len(args))
	for i, a := range args {
		values[i] = operandValue(a)
	}
	if err := frame.Drop(argc + 1); err != nil {
		return err
	}

	vm.logger().Debug("native call",
		zap.String("class", field.ClassName),
		zap.String("field", field.Name),
		zap.String("method", methodName),
		zap.Int("argc", argc))

	if err := method(values); err != nil {
		return fmt.Errorf("invokevirtual %s.%s.%s: %w", field.ClassName, field.Name, methodName, err)
	}
	return nil
}

// operandValue converts an operand to the value a native method receives.
func operandValue(o Operand) native.Value {
	if u, ok := o.Entry.(*classfile.ConstantUtf8); ok {
		return u.Value()
	}
	return o.Entry
}
