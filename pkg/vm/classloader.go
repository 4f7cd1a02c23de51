package vm

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/daimatz/minijvm/pkg/classfile"
)

// ClassLoader loads .class files by class name.
type ClassLoader interface {
	LoadClass(name string) (*classfile.ClassFile, error)
}

// DirClassLoader loads classes from a directory, delegating to the parent
// first when one is set.
type DirClassLoader struct {
	Dir    string
	Parent ClassLoader
	Cache  map[string]*classfile.ClassFile
}

// NewDirClassLoader creates a new DirClassLoader rooted at dir.
func NewDirClassLoader(dir string, parent ClassLoader) *DirClassLoader {
	return &DirClassLoader{
		Dir:    dir,
		Parent: parent,
		Cache:  make(map[string]*classfile.ClassFile),
	}
}

// LoadClass loads name, which may be given with or without the .class
// suffix. Internal names such as "pkg/Main" map to subdirectories.
func (cl *DirClassLoader) LoadClass(name string) (*classfile.ClassFile, error) {
	name = strings.TrimSuffix(name, ".class")
	if cf, ok := cl.Cache[name]; ok {
		return cf, nil
	}
	if cl.Parent != nil {
		if cf, err := cl.Parent.LoadClass(name); err == nil {
			return cf, nil
		}
	}
	path := filepath.Join(cl.Dir, filepath.FromSlash(name)+".class")
	cf, err := classfile.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading class %s: %w", name, err)
	}
	cl.Cache[name] = cf
	Logger().Debug("class loaded", zap.String("class", name), zap.String("path", path))
	return cf, nil
}
