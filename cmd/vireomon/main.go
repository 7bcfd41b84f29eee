// Command vireomon runs a Java program under vireo while driving a
// bubbletea dashboard of its live thread set, class-loader caches, and
// thread-count history — the in-process counterpart to jdiag's
// JMX-attached process monitor, built on the same Model/tab
// architecture (see cmd/vireomon/model.go).
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vireo-vm/vireo/internal/trace"
	"github.com/vireo-vm/vireo/pkg/native"
	"github.com/vireo-vm/vireo/pkg/vm"
)

type monitorFlags struct {
	classPath string
	javaHome  string
}

func main() {
	flags := &monitorFlags{}

	root := &cobra.Command{
		Use:          "vireomon <main-class> [args...]",
		Short:        "Run a Java program under vireo while watching its threads and class loaders live",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return monitor(flags, args[0], args[1:])
		},
	}
	root.Flags().StringVar(&flags.classPath, "cp", "", "application classpath")
	root.Flags().StringVar(&flags.classPath, "classpath", "", "alias for --cp")
	root.Flags().StringVar(&flags.javaHome, "java-home", os.Getenv("JAVA_HOME"), "JDK installation whose jmods back the bootstrap loader")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func monitor(flags *monitorFlags, mainArg string, progArgs []string) error {
	if flags.javaHome == "" {
		return fmt.Errorf("no JAVA_HOME set and --java-home not given")
	}

	log := trace.Noop()
	cfg := vm.Configuration{
		JavaHome:  flags.javaHome,
		ClassPath: flags.classPath,
		MainClass: strings.ReplaceAll(mainArg, ".", "/"),
		Args:      progArgs,
	}

	machine, err := vm.New(cfg, native.NewRegistry(cfg.JavaVersion), log)
	if err != nil {
		return fmt.Errorf("starting vm: %w", err)
	}

	m := newModel(machine)
	program := tea.NewProgram(m, tea.WithAltScreen())

	go func() {
		runErr := machine.RunMain()
		program.Send(doneMsg{err: runErr})
	}()

	_, err = program.Run()
	return err
}
