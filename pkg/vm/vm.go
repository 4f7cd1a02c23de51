package vm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/daimatz/minijvm/pkg/classfile"
	"github.com/daimatz/minijvm/pkg/native"
	"github.com/daimatz/minijvm/pkg/vmerr"
)

// DefaultEntryPoint is the name of the method Execute runs.
const DefaultEntryPoint = "main"

// NativeResolver finds the native behavior bound to a class path, static
// field, and method name. *native.Registry implements it.
type NativeResolver interface {
	Lookup(classPath, fieldName, methodName string) (native.Method, error)
}

// VM executes the entry-point method of a class.
type VM struct {
	Loader  ClassLoader
	Natives NativeResolver
	Logger  *zap.Logger

	// ClassFile is the class being executed. Execute sets it from Loader.
	ClassFile *classfile.ClassFile

	// EntryPoint is the name of the method to run.
	EntryPoint string

	// MaxInstructions bounds the number of instructions one method may
	// execute. Zero means no limit.
	MaxInstructions int
}

// NewVM creates a new VM that loads classes with loader and dispatches
// calls to natives.
func NewVM(loader ClassLoader, natives NativeResolver) *VM {
	return &VM{
		Loader:     loader,
		Natives:    natives,
		EntryPoint: DefaultEntryPoint,
	}
}

func (vm *VM) logger() *zap.Logger {
	if vm.Logger != nil {
		return vm.Logger
	}
	return Logger()
}

// Execute loads className and runs its entry-point method.
func (vm *VM) Execute(className string) error {
	cf, err := vm.Loader.LoadClass(className)
	if err != nil {
		return err
	}
	return vm.ExecuteClass(cf)
}

// ExecuteClass runs the entry-point method of cf.
func (vm *VM) ExecuteClass(cf *classfile.ClassFile) error {
	vm.ClassFile = cf

	entry := vm.EntryPoint
	if entry == "" {
		entry = DefaultEntryPoint
	}
	method, err := cf.FindMethodByName(entry)
	if err != nil {
		return fmt.Errorf("locating entry point: %w", err)
	}
	code, err := cf.MethodCode(method)
	if err != nil {
		return fmt.Errorf("%s: %w", entry, err)
	}

	vm.logger().Debug("executing method",
		zap.String("method", entry),
		zap.Uint16("max_stack", code.MaxStack),
		zap.Int("code_length", len(code.Code)))

	return vm.executeCode(NewFrame(code.Code, code.MaxStack))
}

// executeCode runs frame until a return instruction finishes it.
func (vm *VM) executeCode(frame *Frame) error {
	steps := 0
	for !frame.Finished {
		if frame.AtEnd() {
			return vmerr.New(vmerr.PhaseExecute, vmerr.KindTruncatedCode).
				Value(frame.PC()).
				Detail("code ends at pc %d without return", frame.PC()).
				Build()
		}
		if vm.MaxInstructions > 0 && steps >= vm.MaxInstructions {
			return vmerr.New(vmerr.PhaseExecute, vmerr.KindBudgetExceeded).
				Value(steps).
				Detail("executed %d instructions", steps).
				Build()
		}
		steps++

		pc := frame.PC()
		b, err := frame.ReadU8()
		if err != nil {
			return err
		}
		opcode := Opcode(b)

		vm.logger().Debug("instruction",
			zap.Int("pc", pc),
			zap.Stringer("opcode", opcode),
			zap.Int("depth", frame.Depth()))

		if err := vm.executeInstruction(frame, opcode); err != nil {
			return fmt.Errorf("pc %d (%s): %w", pc, opcode, err)
		}
	}
	return nil
}
