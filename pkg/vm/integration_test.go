package vm

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/daimatz/minijvm/pkg/classfile"
	"github.com/daimatz/minijvm/pkg/classfile/classfiletest"
	"github.com/daimatz/minijvm/pkg/native"
	"github.com/daimatz/minijvm/pkg/vmerr"
)

const mainDescriptor = "([Ljava/lang/String;)V"

// singleMethod builds a class whose main method runs bytecode.
func singleMethod(maxStack uint16, build func(b *classfiletest.Builder) []byte) *classfiletest.Builder {
	b := classfiletest.New("T")
	b.AddMethod(classfiletest.Method{
		AccessFlags: 0x0009,
		Name:        "main",
		Descriptor:  mainDescriptor,
		Code:        &classfiletest.Code{MaxStack: maxStack, MaxLocals: 1, Bytecode: build(b)},
	})
	return b
}

func runStandard(t *testing.T, b *classfiletest.Builder) (string, error) {
	t.Helper()
	var out bytes.Buffer
	vm := NewVM(nil, native.Standard(&out, io.Discard))
	err := vm.ExecuteClass(parseBuilder(t, b))
	return out.String(), err
}

func TestHelloWorld(t *testing.T) {
	got, err := runStandard(t, classfiletest.Println("Hello", "println", "Hello"))
	if err != nil {
		t.Fatalf("execution failed: %v", err)
	}
	if got != "Hello\n" {
		t.Errorf("output: got %q, want %q", got, "Hello\n")
	}
}

func TestExecuteMissingNativeMethod(t *testing.T) {
	got, err := runStandard(t, classfiletest.Println("Hello", "printx", "Hello"))
	if !errors.Is(err, vmerr.ErrMethodNotFound) {
		t.Fatalf("got %v, want method lookup failure", err)
	}
	var e *vmerr.Error
	if !errors.As(err, &e) || e.Name != "printx" {
		t.Errorf("error does not name the method: %v", err)
	}
	if !strings.Contains(err.Error(), "printx") {
		t.Errorf("message %q does not mention printx", err.Error())
	}
	if got != "" {
		t.Errorf("output: got %q, want nothing", got)
	}
}

func TestExceptionTableRejectedBeforeExecution(t *testing.T) {
	b := classfiletest.New("T")
	out := b.Fieldref("java/lang/System", "out", "Ljava/io/PrintStream;")
	str := b.String("never")
	m := b.Methodref("java/io/PrintStream", "println", "(Ljava/lang/String;)V")
	b.AddMethod(classfiletest.Method{
		AccessFlags: 0x0009,
		Name:        "main",
		Descriptor:  mainDescriptor,
		Code: &classfiletest.Code{
			MaxStack:  2,
			MaxLocals: 1,
			Bytecode: classfiletest.Concat(
				classfiletest.Getstatic(out),
				classfiletest.Ldc(uint8(str)),
				classfiletest.Invokevirtual(m),
				classfiletest.Return(),
			),
			ExceptionTable: [][4]uint16{{0, 8, 8, 0}},
		},
	})

	_, err := classfile.Parse(b.Bytes())
	if !errors.Is(err, vmerr.ErrUnsupportedFeature) {
		t.Fatalf("got %v, want UnsupportedFeature", err)
	}
}

func TestExecuteUnknownOpcode(t *testing.T) {
	b := singleMethod(0, func(*classfiletest.Builder) []byte { return []byte{0xFE} })
	_, err := runStandard(t, b)
	if !errors.Is(err, vmerr.ErrUnknownOpcode) {
		t.Fatalf("got %v, want UnknownOpcode", err)
	}
	if !strings.Contains(err.Error(), "0xFE") {
		t.Errorf("message %q does not name the byte", err.Error())
	}
}

func TestExecuteFailures(t *testing.T) {
	tests := []struct {
		name   string
		build  *classfiletest.Builder
		target error
	}{
		{
			name: "code ends without return",
			build: singleMethod(1, func(b *classfiletest.Builder) []byte {
				return classfiletest.Getstatic(b.Fieldref("java/lang/System", "out", "Ljava/io/PrintStream;"))
			}),
			target: vmerr.ErrTruncatedCode,
		},
		{
			name:   "empty code",
			build:  singleMethod(0, func(*classfiletest.Builder) []byte { return nil }),
			target: vmerr.ErrTruncatedCode,
		},
		{
			name: "operand stack too small",
			build: singleMethod(1, func(b *classfiletest.Builder) []byte {
				return classfiletest.Concat(
					classfiletest.Getstatic(b.Fieldref("java/lang/System", "out", "Ljava/io/PrintStream;")),
					classfiletest.Ldc(uint8(b.String("x"))),
					classfiletest.Return(),
				)
			}),
			target: vmerr.ErrStackOverflow,
		},
		{
			name: "invoke with empty stack",
			build: singleMethod(2, func(b *classfiletest.Builder) []byte {
				return classfiletest.Concat(
					classfiletest.Invokevirtual(b.Methodref("java/io/PrintStream", "println", "(Ljava/lang/String;)V")),
					classfiletest.Return(),
				)
			}),
			target: vmerr.ErrStackUnderflow,
		},
		{
			name:   "no main method",
			build:  classfiletest.New("T"),
			target: vmerr.ErrMissingMethod,
		},
		{
			name: "main without code",
			build: func() *classfiletest.Builder {
				b := classfiletest.New("T")
				b.AddMethod(classfiletest.Method{AccessFlags: 0x0109, Name: "main", Descriptor: mainDescriptor})
				return b
			}(),
			target: vmerr.ErrMissingAttribute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := runStandard(t, tt.build)
			if !errors.Is(err, tt.target) {
				t.Fatalf("got %v, want %v", err, tt.target)
			}
			if got != "" {
				t.Errorf("output: got %q, want nothing", got)
			}
		})
	}
}

func TestExecuteInstructionBudget(t *testing.T) {
	tests := []struct {
		budget  int
		want    string
		wantErr bool
	}{
		{budget: 0, want: "Hi\n"},
		{budget: 4, want: "Hi\n"},
		{budget: 2, wantErr: true},
	}

	for _, tt := range tests {
		var out bytes.Buffer
		vm := NewVM(nil, native.Standard(&out, io.Discard))
		vm.MaxInstructions = tt.budget

		err := vm.ExecuteClass(parseBuilder(t, classfiletest.Println("T", "println", "Hi")))
		if tt.wantErr {
			if !errors.Is(err, vmerr.ErrBudgetExceeded) {
				t.Errorf("budget %d: got %v, want BudgetExceeded", tt.budget, err)
			}
		} else if err != nil {
			t.Errorf("budget %d: %v", tt.budget, err)
		}
		if out.String() != tt.want {
			t.Errorf("budget %d: output %q, want %q", tt.budget, out.String(), tt.want)
		}
	}
}

func TestExecuteEntryPoint(t *testing.T) {
	b := classfiletest.Println("T", "print", "run")
	b.AddMethod(classfiletest.Method{
		AccessFlags: 0x0009,
		Name:        "run",
		Descriptor:  "()V",
		Code:        &classfiletest.Code{MaxStack: 0, MaxLocals: 0, Bytecode: classfiletest.Return()},
	})
	cf := parseBuilder(t, b)

	var out bytes.Buffer
	vm := NewVM(nil, native.Standard(&out, io.Discard))
	vm.EntryPoint = "run"
	if err := vm.ExecuteClass(cf); err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("run wrote %q", out.String())
	}

	vm.EntryPoint = "main"
	if err := vm.ExecuteClass(cf); err != nil {
		t.Fatalf("main: %v", err)
	}
	if out.String() != "run" {
		t.Errorf("main output: got %q, want %q", out.String(), "run")
	}
}

func TestExecuteLoadsFromDirectory(t *testing.T) {
	dir := t.TempDir()
	data := classfiletest.Println("Hello", "println", "Hello, World!").Bytes()
	if err := os.WriteFile(filepath.Join(dir, "Hello.class"), data, 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	vm := NewVM(NewDirClassLoader(dir, nil), native.Standard(&out, io.Discard))
	if err := vm.Execute("Hello"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.String() != "Hello, World!\n" {
		t.Errorf("output: got %q, want %q", out.String(), "Hello, World!\n")
	}

	if err := vm.Execute("Missing"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing class: got %v, want not-exist", err)
	}
}

func TestExecuteLogs(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	var out bytes.Buffer
	vm := NewVM(nil, native.Standard(&out, io.Discard))
	vm.Logger = zap.New(core)
	if err := vm.ExecuteClass(parseBuilder(t, classfiletest.Println("T", "println", "Hi"))); err != nil {
		t.Fatalf("ExecuteClass: %v", err)
	}

	if n := logs.FilterMessage("instruction").Len(); n != 4 {
		t.Errorf("instruction events: got %d, want 4", n)
	}
	calls := logs.FilterMessage("native call").All()
	if len(calls) != 1 {
		t.Fatalf("native call events: got %d, want 1", len(calls))
	}
	fields := calls[0].ContextMap()
	if fields["method"] != "println" || fields["field"] != "out" {
		t.Errorf("native call fields: got %v", fields)
	}
}
