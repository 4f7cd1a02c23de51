package classfile

import "strings"

// ArgCount returns the number of arguments a method descriptor declares,
// counted as the number of ';' terminators. This holds only for descriptors
// whose arguments are all single reference types. Primitive and array
// arguments, and a reference return type, are miscounted.
func ArgCount(descriptor string) int {
	return strings.Count(descriptor, ";")
}
