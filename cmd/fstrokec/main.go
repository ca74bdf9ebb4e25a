// Command fstrokec compiles F-Stroke source files to EVM-subset bytecode.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"fstroke"
	"fstroke/ast"
	"fstroke/disasm"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	app := newApp(log)
	if err := app.Run(os.Args); err != nil {
		if exitErr, ok := err.(cli.ExitCoder); ok {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(exitErr.ExitCode())
		}
		log.Error(err)
		os.Exit(1)
	}
}

func newApp(log *logrus.Logger) *cli.App {
	return &cli.App{
		Name:      "fstrokec",
		Usage:     "compile F-Stroke source to EVM-subset bytecode",
		ArgsUsage: "[source-file]",
		Description: "Reads F-Stroke source from the given file, or from stdin when the " +
			"argument is omitted or is \"-\".",
		// Exit errors are returned from Run and reported by main, instead of
		// the cli package's default handler exiting the process.
		ExitErrHandler: func(*cli.Context, error) {},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Value:   "output.ebc",
				Usage:   "path to write the compiled hex bytecode",
			},
			&cli.IntFlag{
				Name:  "hex-size",
				Value: 32,
				Usage: "PUSH address width A, in bytes (1-32)",
			},
			&cli.BoolFlag{
				Name:  "disasm",
				Usage: "print a disassembly of the compiled bytecode to stdout",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "info",
				Usage: "logrus level: trace, debug, info, warn, error",
			},
		},
		Action: func(c *cli.Context) error {
			level, err := logrus.ParseLevel(c.String("log-level"))
			if err != nil {
				return cli.Exit(fmt.Sprintf("invalid log level: %v", err), 2)
			}
			log.SetLevel(level)

			if c.NArg() > 1 {
				return cli.Exit("expected at most one source file argument", 2)
			}
			sourcePath := c.Args().First() // "" when absent, meaning stdin
			return run(log, sourcePath, c.String("output"), c.Int("hex-size"), c.Bool("disasm"))
		},
	}
}

// readSource returns source text from sourcePath, or from stdin when
// sourcePath is empty (no positional argument) or "-", per the CLI's
// documented stdin fallback.
func readSource(sourcePath string) ([]byte, string, error) {
	if sourcePath == "" || sourcePath == "-" {
		src, err := io.ReadAll(os.Stdin)
		return src, "<stdin>", err
	}
	src, err := os.ReadFile(sourcePath)
	return src, sourcePath, err
}

func run(log *logrus.Logger, sourcePath, outputPath string, width int, showDisasm bool) error {
	src, label, err := readSource(sourcePath)
	if err != nil {
		return cli.Exit(fmt.Sprintf("reading %s: %v", label, err), 1)
	}

	log.WithField("source", label).Debug("parsing source")
	tree, err := ast.Parse(string(src))
	if err != nil {
		return cli.Exit(fmt.Sprintf("parse error: %v", err), 3)
	}

	gen, err := fstroke.NewGenerator(width, fstroke.WithLogger(log))
	if err != nil {
		return cli.Exit(fmt.Sprintf("configuration error: %v", err), 2)
	}

	log.WithField("address_width", width).Debug("lowering to bytecode")
	hexOut, err := gen.Generate(tree)
	if err != nil {
		return cli.Exit(fmt.Sprintf("compile error: %v", err), 4)
	}

	if err := os.WriteFile(outputPath, []byte(hexOut), 0o644); err != nil {
		return cli.Exit(fmt.Sprintf("writing %s: %v", outputPath, err), 1)
	}
	log.WithFields(logrus.Fields{"output": outputPath, "bytes": len(hexOut) / 2}).Info("wrote bytecode")

	if showDisasm {
		lines, err := disasm.Disassemble(hexOut, width)
		if err != nil {
			return cli.Exit(fmt.Sprintf("disassembly error: %v", err), 5)
		}
		fmt.Print(disasm.Format(lines))
	}

	return nil
}
