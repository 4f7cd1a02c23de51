// Package native implements the host side of method dispatch: a registry of
// native classes reachable from bytecode as class path, static field, and
// method name.
package native

import (
	"sort"

	"github.com/daimatz/minijvm/pkg/vmerr"
)

// Value is an argument handed to a native method. Strings loaded from the
// constant pool arrive as Go strings; any other operand arrives as the
// constant pool entry that was on the operand stack.
type Value = any

// Method is a native behavior. It validates its own arguments.
type Method func(args []Value) error

// Object is the shared representation of native classes and instances:
// named fields referencing other objects, and named methods.
type Object struct {
	Fields  map[string]*Object
	Methods map[string]Method
}

// NewObject creates an Object with empty field and method tables.
func NewObject() *Object {
	return &Object{
		Fields:  make(map[string]*Object),
		Methods: make(map[string]Method),
	}
}

// Class is a registry entry: an Object addressed by its class path, such as
// "java/lang/System".
type Class struct {
	Path string
	*Object
}

// NewClass creates an empty Class for path.
func NewClass(path string) *Class {
	return &Class{Path: path, Object: NewObject()}
}

// Registry maps class paths to native classes. It is built once before
// execution and only read afterwards.
type Registry struct {
	classes map[string]*Class
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{classes: make(map[string]*Class)}
}

// Register adds c, replacing any class with the same path.
func (r *Registry) Register(c *Class) {
	r.classes[c.Path] = c
}

// Class returns the class registered under path.
func (r *Registry) Class(path string) (*Class, error) {
	c, ok := r.classes[path]
	if !ok {
		return nil, vmerr.Lookup(vmerr.TargetClass, path, "")
	}
	return c, nil
}

// Paths returns the registered class paths in sorted order.
func (r *Registry) Paths() []string {
	paths := make([]string, 0, len(r.classes))
	for p := range r.classes {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Lookup resolves classPath, then fieldName within that class's fields,
// then methodName within the receiver's methods. Each level that has no
// match fails with a Lookup error whose Target names that level.
func (r *Registry) Lookup(classPath, fieldName, methodName string) (Method, error) {
	class, err := r.Class(classPath)
	if err != nil {
		return nil, err
	}
	receiver, ok := class.Fields[fieldName]
	if !ok || receiver == nil {
		return nil, vmerr.Lookup(vmerr.TargetField, fieldName, classPath)
	}
	method, ok := receiver.Methods[methodName]
	if !ok || method == nil {
		return nil, vmerr.Lookup(vmerr.TargetMethod, methodName, classPath+"."+fieldName)
	}
	return method, nil
}

// Invoke looks up and calls a native method.
func (r *Registry) Invoke(classPath, fieldName, methodName string, args []Value) error {
	m, err := r.Lookup(classPath, fieldName, methodName)
	if err != nil {
		return err
	}
	return m(args)
}
