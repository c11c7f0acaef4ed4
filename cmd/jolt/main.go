// jolt CLI - runs classes from a class store and manages its contents
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/jolt/classstore"
	"github.com/chazu/jolt/manifest"
	"github.com/chazu/jolt/pkg/bytecode"
	"github.com/chazu/jolt/pkg/classfile"
	"github.com/chazu/jolt/pkg/descriptor"
	"github.com/chazu/jolt/vm"
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: jolt <command> [options] [args...]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  run      Run a class from the store configured in jolt.toml\n")
	fmt.Fprintf(os.Stderr, "  import   Import .cbor class artifacts into a store\n")
	fmt.Fprintf(os.Stderr, "  classes  List the classes in a store\n")
	fmt.Fprintf(os.Stderr, "  disasm   Disassemble a stored class\n")
	fmt.Fprintf(os.Stderr, "  demo     Write a sample demo/Adder class into a store\n")
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  jolt demo classes.db\n")
	fmt.Fprintf(os.Stderr, "  jolt run -store classes.db -class demo/Adder -method add -desc '(II)I' 3 4\n")
	fmt.Fprintf(os.Stderr, "  jolt run -config ./project             # use ./project/jolt.toml\n")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	args := os.Args[2:]
	switch os.Args[1] {
	case "run":
		err = cmdRun(args)
	case "import":
		err = cmdImport(args)
	case "classes":
		err = cmdClasses(args)
	case "disasm":
		err = cmdDisasm(args)
	case "demo":
		err = cmdDemo(args)
	case "-h", "-help", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// run
// ---------------------------------------------------------------------------

func cmdRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configDir := fs.String("config", ".", "Directory to search (upwards) for jolt.toml")
	storePath := fs.String("store", "", "Class store path (overrides [classes] store)")
	className := fs.String("class", "", "Class to run (overrides [run] main-class)")
	method := fs.String("method", "", "Method name (overrides [run] method)")
	desc := fs.String("desc", "", "Method descriptor (overrides [run] descriptor)")
	steps := fs.Int("steps", -1, "Step limit, 0 for none (overrides [run] max-steps)")
	strict := fs.Bool("strict", false, "Always dispatch invokevirtual through the receiver class")
	verbosity := fs.Int("v", -1, "Log verbosity (overrides [log] verbosity)")
	fs.Parse(args)

	m, err := manifest.FindAndLoad(*configDir)
	if err != nil {
		return err
	}
	if m == nil {
		m = manifest.Default(*configDir)
	}
	if *storePath != "" {
		m.Classes.Store = *storePath
	}
	if *className != "" {
		m.Run.MainClass = *className
	}
	if *method != "" {
		m.Run.Method = *method
	}
	if *desc != "" {
		m.Run.Descriptor = *desc
	}
	if *steps >= 0 {
		m.Run.MaxSteps = *steps
	}
	if *strict {
		m.Run.Dispatch = vm.PolicyStrict.String()
	}
	if *verbosity >= 0 {
		m.Log.Verbosity = *verbosity
	}
	commonlog.Configure(m.Log.Verbosity, m.LogFilePath())

	if m.Run.MainClass == "" {
		return errors.New("no class to run: set [run] main-class or pass -class")
	}

	store, err := classstore.Open(m.StorePath())
	if err != nil {
		return err
	}
	defer store.Close()
	for _, dir := range m.ClassDirPaths() {
		if _, err := store.ImportDir(dir); err != nil {
			return err
		}
	}

	opts, err := m.VMOptions()
	if err != nil {
		return err
	}
	v := vm.New(append(opts, vm.WithLoader(store))...)

	if m.Run.Method == "main" && m.Run.Descriptor == "([Ljava/lang/String;)V" {
		return report(v.RunMain(m.Run.MainClass, fs.Args()))
	}

	d, err := descriptor.ParseMethod(m.Run.Descriptor)
	if err != nil {
		return err
	}
	values, err := parseArgs(v, d, fs.Args())
	if err != nil {
		return err
	}
	result, err := v.Invoke(m.Run.MainClass, m.Run.Method, m.Run.Descriptor, values...)
	if err := report(err); err != nil {
		return err
	}
	if !d.ReturnsVoid() {
		fmt.Println(formatValue(result))
	}
	return nil
}

// report prints the Java-level backtrace of an unhandled exception.
func report(err error) error {
	var fe *vm.FatalError
	if errors.As(err, &fe) && fe.Kind == vm.UnhandledException {
		for _, el := range vm.ExceptionTrace(fe.Exception) {
			fmt.Fprintf(os.Stderr, "\tat %s\n", el)
		}
	}
	return err
}

// parseArgs converts command-line strings to arguments of a static method.
func parseArgs(v *vm.VM, d *descriptor.Method, args []string) ([]vm.Value, error) {
	if len(args) != len(d.Params) {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", d, len(d.Params), len(args))
	}
	values := make([]vm.Value, len(args))
	for i, p := range d.Params {
		s := args[i]
		var err error
		switch p.Kind {
		case descriptor.Boolean:
			var b bool
			b, err = strconv.ParseBool(s)
			if b {
				values[i] = vm.IntValue(1)
			} else {
				values[i] = vm.IntValue(0)
			}
		case descriptor.Byte, descriptor.Short, descriptor.Int:
			var n int64
			n, err = strconv.ParseInt(s, 0, 32)
			values[i] = vm.IntValue(int32(n))
		case descriptor.Char:
			r := []rune(s)
			if len(r) != 1 {
				err = fmt.Errorf("want a single character, got %q", s)
			} else {
				values[i] = vm.IntValue(int32(r[0]))
			}
		case descriptor.Long:
			var n int64
			n, err = strconv.ParseInt(s, 0, 64)
			values[i] = vm.LongValue(n)
		case descriptor.Float:
			var f float64
			f, err = strconv.ParseFloat(s, 32)
			values[i] = vm.FloatValue(float32(f))
		case descriptor.Double:
			var f float64
			f, err = strconv.ParseFloat(s, 64)
			values[i] = vm.DoubleValue(f)
		default:
			if p.ClassName != vm.StringClassName {
				return nil, fmt.Errorf("argument %d: cannot pass %s from the command line", i, p)
			}
			values[i], err = v.NewString(s)
		}
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
	}
	return values, nil
}

func formatValue(v vm.Value) string {
	if s, ok := vm.GoString(v); ok {
		return strconv.Quote(s)
	}
	switch v.Kind() {
	case vm.KindInt:
		return strconv.Itoa(int(v.Int()))
	case vm.KindLong:
		return strconv.FormatInt(v.Long(), 10)
	case vm.KindFloat:
		return strconv.FormatFloat(float64(v.Float()), 'g', -1, 32)
	case vm.KindDouble:
		return strconv.FormatFloat(v.Double(), 'g', -1, 64)
	}
	return v.String()
}

// ---------------------------------------------------------------------------
// Store management
// ---------------------------------------------------------------------------

func openArg(fs *flag.FlagSet, want int, usage string) (*classstore.Store, error) {
	if fs.NArg() != want {
		return nil, fmt.Errorf("usage: jolt %s %s", fs.Name(), usage)
	}
	return classstore.Open(fs.Arg(0))
}

func cmdImport(args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	fs.Parse(args)
	store, err := openArg(fs, 2, "<store> <dir>")
	if err != nil {
		return err
	}
	defer store.Close()

	names, err := store.ImportDir(fs.Arg(1))
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d classes\n", len(names))
	return nil
}

func cmdClasses(args []string) error {
	fs := flag.NewFlagSet("classes", flag.ExitOnError)
	fs.Parse(args)
	store, err := openArg(fs, 1, "<store>")
	if err != nil {
		return err
	}
	defer store.Close()

	names, err := store.Names()
	if err != nil {
		return err
	}
	for _, name := range names {
		digest, err := store.Digest(name)
		if err != nil {
			return err
		}
		fmt.Printf("%s  %s\n", digest[:16], name)
	}
	return nil
}

func cmdDisasm(args []string) error {
	fs := flag.NewFlagSet("disasm", flag.ExitOnError)
	fs.Parse(args)
	store, err := openArg(fs, 2, "<store> <class>")
	if err != nil {
		return err
	}
	defer store.Close()

	c, err := store.Get(fs.Arg(1))
	if err != nil {
		return err
	}
	fmt.Print(c.Listing())
	return nil
}

// cmdDemo stores demo/Adder with add(II)I, an empty main and divide(II)I,
// which lets ArithmeticException escape for a zero divisor.
func cmdDemo(args []string) error {
	fs := flag.NewFlagSet("demo", flag.ExitOnError)
	fs.Parse(args)
	store, err := openArg(fs, 1, "<store>")
	if err != nil {
		return err
	}
	defer store.Close()

	b := classfile.NewBuilder("demo/Adder", vm.ObjectClassName).SetSourceFile("Adder.java")
	static := uint16(classfile.AccPublic | classfile.AccStatic)
	b.AddMethod(static, "add", "(II)I", 2, 2,
		new(classfile.Asm).Op(bytecode.Iload0, bytecode.Iload1, bytecode.Iadd, bytecode.Ireturn).Bytes())
	b.LineNumbers("add", "(II)I", classfile.LineNumber{StartPC: 0, Line: 3})
	b.AddMethod(static, "divide", "(II)I", 2, 2,
		new(classfile.Asm).Op(bytecode.Iload0, bytecode.Iload1, bytecode.Idiv, bytecode.Ireturn).Bytes())
	b.LineNumbers("divide", "(II)I", classfile.LineNumber{StartPC: 0, Line: 7})
	b.AddMethod(static, "main", "([Ljava/lang/String;)V", 1, 1,
		new(classfile.Asm).Op(bytecode.Return).Bytes())

	digest, err := store.Put(b.Build())
	if err != nil {
		return err
	}
	fmt.Printf("Stored demo/Adder (%s)\n", digest[:16])
	fmt.Println("Try: jolt run -store " + fs.Arg(0) + " -class demo/Adder -method add -desc '(II)I' 3 4")
	return nil
}
