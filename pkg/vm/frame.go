package vm

import (
	"errors"
	"fmt"

	"github.com/daimatz/minijvm/pkg/classfile"
	"github.com/daimatz/minijvm/pkg/vmerr"
)

// Operand is an operand stack value: a reference to a constant pool entry.
// Index is the slot the entry was taken from.
type Operand struct {
	Index uint16
	Entry classfile.Constant
}

func (o Operand) String() string {
	return fmt.Sprintf("#%d %s", o.Index, o.Entry)
}

// Frame is the state of one method activation: the code being executed,
// the program counter, and a bounded operand stack.
type Frame struct {
	code         *classfile.Cursor
	OperandStack []Operand
	MaxStack     int
	Finished     bool
}

// NewFrame creates a Frame over code with room for maxStack operands.
func NewFrame(code []byte, maxStack uint16) *Frame {
	return &Frame{
		code:         classfile.NewCursor(code),
		OperandStack: make([]Operand, 0, maxStack),
		MaxStack:     int(maxStack),
	}
}

// PC returns the offset of the next byte to execute.
func (f *Frame) PC() int { return f.code.Pos() }

// AtEnd reports whether the code buffer is exhausted.
func (f *Frame) AtEnd() bool { return f.code.AtEnd() }

// Depth returns the number of operands on the stack.
func (f *Frame) Depth() int { return len(f.OperandStack) }

// Push pushes a value onto the operand stack.
func (f *Frame) Push(v Operand) error {
	if len(f.OperandStack) >= f.MaxStack {
		return vmerr.New(vmerr.PhaseExecute, vmerr.KindStackOverflow).
			Value(len(f.OperandStack)).
			Detail("operand stack full: max_stack=%d", f.MaxStack).
			Build()
	}
	f.OperandStack = append(f.OperandStack, v)
	return nil
}

// Pop pops a value from the operand stack.
func (f *Frame) Pop() (Operand, error) {
	if len(f.OperandStack) == 0 {
		return Operand{}, underflow(1, 0)
	}
	v := f.OperandStack[len(f.OperandStack)-1]
	f.OperandStack = f.OperandStack[:len(f.OperandStack)-1]
	return v, nil
}

// Peek returns the top n operands, oldest first, without popping them.
func (f *Frame) Peek(n int) ([]Operand, error) {
	if n < 0 || n > len(f.OperandStack) {
		return nil, underflow(n, len(f.OperandStack))
	}
	top := f.OperandStack[len(f.OperandStack)-n:]
	out := make([]Operand, n)
	copy(out, top)
	return out, nil
}

// Drop discards the top n operands.
func (f *Frame) Drop(n int) error {
	if n < 0 || n > len(f.OperandStack) {
		return underflow(n, len(f.OperandStack))
	}
	f.OperandStack = f.OperandStack[:len(f.OperandStack)-n]
	return nil
}

// Clear empties the operand stack.
func (f *Frame) Clear() {
	f.OperandStack = f.OperandStack[:0]
}

func underflow(want, have int) error {
	return vmerr.New(vmerr.PhaseExecute, vmerr.KindStackUnderflow).
		Value(have).
		Detail("need %d operand(s), stack holds %d", want, have).
		Build()
}

// ReadU8 reads a uint8 from the code buffer and advances PC.
func (f *Frame) ReadU8() (uint8, error) {
	v, err := f.code.ReadU1()
	return v, truncated(f, err)
}

// ReadU16 reads a big-endian uint16 operand and advances PC by 2.
func (f *Frame) ReadU16() (uint16, error) {
	v, err := f.code.ReadU2()
	return v, truncated(f, err)
}

// truncated turns a cursor overrun into TruncatedCode.
func truncated(f *Frame, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, vmerr.ErrOutOfBounds) {
		return vmerr.New(vmerr.PhaseExecute, vmerr.KindTruncatedCode).
			Value(f.PC()).
			Detail("operand runs past end of code at pc %d", f.PC()).
			Cause(err).
			Build()
	}
	return err
}
