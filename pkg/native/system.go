package native

import (
	"fmt"
	"io"

	"github.com/daimatz/minijvm/pkg/vmerr"
)

// PrintStream represents a java.io.PrintStream.
type PrintStream struct {
	Writer io.Writer
}

// Println prints at most one value followed by a newline.
func (ps *PrintStream) Println(args []Value) error {
	if err := checkArity("println", args, 1); err != nil {
		return err
	}
	if len(args) == 0 {
		_, err := fmt.Fprintln(ps.Writer)
		return err
	}
	_, err := fmt.Fprintln(ps.Writer, args[0])
	return err
}

// Print prints one value without a trailing newline.
func (ps *PrintStream) Print(args []Value) error {
	if len(args) != 1 {
		return invalidArgs("print", 1, len(args))
	}
	_, err := fmt.Fprint(ps.Writer, args[0])
	return err
}

// Object exposes ps as a native object.
func (ps *PrintStream) Object() *Object {
	obj := NewObject()
	obj.Methods["println"] = ps.Println
	obj.Methods["print"] = ps.Print
	return obj
}

// System builds java/lang/System with static fields out and err.
func System(stdout, stderr io.Writer) *Class {
	c := NewClass("java/lang/System")
	c.Fields["out"] = (&PrintStream{Writer: stdout}).Object()
	c.Fields["err"] = (&PrintStream{Writer: stderr}).Object()
	return c
}

// Standard returns a Registry holding the built-in classes, with
// System.out and System.err writing to stdout and stderr.
func Standard(stdout, stderr io.Writer) *Registry {
	r := NewRegistry()
	r.Register(System(stdout, stderr))
	return r
}

func checkArity(name string, args []Value, max int) error {
	if len(args) > max {
		return invalidArgs(name, max, len(args))
	}
	return nil
}

func invalidArgs(name string, want, got int) error {
	return vmerr.New(vmerr.PhaseNative, vmerr.KindInvalidArgument).
		Name(name).
		Value(got).
		Detail("expected %d argument(s), got %d", want, got).
		Build()
}
