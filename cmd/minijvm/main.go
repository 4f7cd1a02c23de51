package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/daimatz/minijvm/pkg/classfile"
	"github.com/daimatz/minijvm/pkg/config"
	"github.com/daimatz/minijvm/pkg/native"
	"github.com/daimatz/minijvm/pkg/vm"
)

const usage = "Usage: minijvm [-config file] [-entry name] [-max-instructions n] [-dump out.cbor] [-v] <classfile>"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("minijvm", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		configFile      = fs.String("config", "", "Path to minijvm.toml (default: search upward from the class directory)")
		entry           = fs.String("entry", "", "Entry-point method name")
		maxInstructions = fs.Int("max-instructions", 0, "Instruction budget, 0 for unlimited")
		dump            = fs.String("dump", "", "Write a canonical CBOR snapshot of the class to this file")
		verbose         = fs.Bool("v", false, "Debug logging")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, usage)
		return 2
	}

	filename := fs.Arg(0)
	dir := filepath.Dir(filename)
	className := strings.TrimSuffix(filepath.Base(filename), ".class")

	cfg, err := loadConfig(*configFile, dir)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	// Explicit flags win over the file.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "entry":
			cfg.Run.Entry = *entry
		case "max-instructions":
			cfg.Run.MaxInstructions = *maxInstructions
		case "v":
			if *verbose {
				cfg.Log.Level = "debug"
			}
		}
	})

	logger, err := cfg.Log.NewLogger()
	if err != nil {
		fmt.Fprintf(stderr, "Error: creating logger: %v\n", err)
		return 1
	}
	defer logger.Sync()
	classfile.SetLogger(logger.Named("classfile"))
	vm.SetLogger(logger.Named("vm"))

	if cfg.Path != "" {
		logger.Debug("config loaded", zap.String("path", cfg.Path))
	}

	loader := vm.NewDirClassLoader(dir, nil)
	cf, err := loader.LoadClass(className)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if *dump != "" {
		if err := writeSnapshot(cf, *dump); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	}

	machine := vm.NewVM(loader, native.Standard(stdout, stderr))
	machine.EntryPoint = cfg.Run.Entry
	machine.MaxInstructions = cfg.Run.MaxInstructions

	if err := machine.ExecuteClass(cf); err != nil {
		logger.Debug("execution failed", zap.String("class", className), zap.Error(err))
		fmt.Fprintf(stderr, "Error executing: %v\n", err)
		return 1
	}
	return 0
}

func loadConfig(path, classDir string) (*config.Config, error) {
	if path == "" {
		return config.FindAndLoad(classDir)
	}
	return config.LoadFile(path)
}

func writeSnapshot(cf *classfile.ClassFile, path string) error {
	data, err := classfile.MarshalCanonical(cf)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}
