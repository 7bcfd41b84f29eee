// Command vireo runs a compiled Java class or executable jar against
// vireo's own class-file codec, loader hierarchy and interpreter — the
// teacher's single-file gojvm launcher, generalized with cobra into the
// flag surface a real `java` invocation expects (classpath, -D system
// properties, JAVA_HOME discovery) instead of gojvm's one positional
// argument.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vireo-vm/vireo/internal/trace"
	"github.com/vireo-vm/vireo/pkg/native"
	"github.com/vireo-vm/vireo/pkg/vm"
)

type runFlags struct {
	classPath   string
	javaHome    string
	verbose     bool
	jsonLogs    bool
	javaVersion int
	sysProps    []string
}

func main() {
	flags := &runFlags{}

	root := &cobra.Command{
		Use:   "vireo <main-class-or-jar> [args...]",
		Short: "A from-scratch JVM: class loader, verifier-free interpreter, and native runtime",
		Long: "vireo loads and runs JVM class files directly, without delegating to a host JVM.\n" +
			"Pass a binary class name (com.example.Main) resolved via -cp, or a jar file\n" +
			"carrying a Main-Class manifest entry.",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(flags, args[0], args[1:])
		},
	}

	root.Flags().StringVar(&flags.classPath, "cp", "", "application classpath (entries separated by ':', or ';' on Windows:dirs, .jar, .jmod, http(s) URLs)")
	root.Flags().StringVar(&flags.classPath, "classpath", "", "alias for --cp")
	root.Flags().StringVar(&flags.javaHome, "java-home", os.Getenv("JAVA_HOME"), "JDK installation whose jmods back the bootstrap loader")
	root.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug-level logging")
	root.Flags().BoolVar(&flags.jsonLogs, "json-logs", false, "emit structured JSON logs instead of console output")
	root.Flags().IntVar(&flags.javaVersion, "source", 0, "class-library bootstrap sequence to drive (9+ default phased init, <9 legacy initializeSystemClass)")
	root.Flags().StringArrayVarP(&flags.sysProps, "define", "D", nil, "system property, name=value (repeatable)")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(flags *runFlags, mainArg string, progArgs []string) error {
	if flags.javaHome == "" {
		return fmt.Errorf("no JAVA_HOME set and --java-home not given")
	}

	log := trace.New(trace.Config{Verbose: flags.verbose, JSON: flags.jsonLogs})
	defer log.Sync()

	mainClass, jarPath := "", ""
	if strings.HasSuffix(mainArg, ".jar") {
		jarPath = mainArg
	} else {
		mainClass = strings.ReplaceAll(mainArg, ".", "/")
	}

	props := map[string]string{}
	for _, kv := range flags.sysProps {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("-D%s: expected name=value", kv)
		}
		props[name] = value
	}

	cfg := vm.Configuration{
		JavaHome:    flags.javaHome,
		ClassPath:   flags.classPath,
		MainClass:   mainClass,
		JarPath:     jarPath,
		Args:        progArgs,
		SystemProps: props,
		Verbose:     flags.verbose,
		JavaVersion: flags.javaVersion,
	}

	machine, err := vm.New(cfg, native.NewRegistry(cfg.JavaVersion), log)
	if err != nil {
		return fmt.Errorf("starting vm: %w", err)
	}
	return machine.RunMain()
}
