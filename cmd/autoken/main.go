// Command autoken runs the borrow-conflict analyzer against real Go source,
// wiring together a YAML run configuration, the real go/ssa front end, a
// persistent fact cache, and the dynamic-protobuf wire exporter.
//
// Usage: autoken [-config path] [-dir path] [pattern...]
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/Radbuglet/autoken-go/internal/cache"
	"github.com/Radbuglet/autoken-go/internal/config"
	"github.com/Radbuglet/autoken-go/internal/diagnostic"
	"github.com/Radbuglet/autoken-go/internal/driver"
	"github.com/Radbuglet/autoken-go/internal/errs"
	"github.com/Radbuglet/autoken-go/internal/facts"
	"github.com/Radbuglet/autoken-go/internal/goir"
	"github.com/Radbuglet/autoken-go/internal/ir"
	"github.com/Radbuglet/autoken-go/internal/wire"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			if os.Getenv("DEBUG") == "1" {
				panic(r)
			}
			fmt.Fprintf(os.Stderr, "autoken: internal error: %v\n", r)
			os.Exit(config.ExitFatal)
		}
	}()

	configPath, dir, patterns := parseArgs(os.Args[1:])

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "autoken: %s\n", err)
		os.Exit(config.ExitFatal)
	}
	if len(patterns) > 0 {
		cfg.Packages = patterns
	}

	adapter, err := goir.Load(dir, cfg.Packages, cfg.EntryOrDefault())
	if err != nil {
		reportFatal(err)
	}

	var fc *cache.Cache
	if cfg.CachePath != "" {
		fc, err = cache.Open(cfg.CachePath)
		if err != nil {
			// A broken cache degrades to "analyze from scratch", per
			// internal/cache's own contract; warn and keep going.
			fmt.Fprintf(os.Stderr, "autoken: warning: cache unavailable: %s\n", err)
		}
	}

	table := facts.NewTable()
	if fc != nil {
		if err := fc.Seed(table, fingerprintFor(adapter)); err != nil {
			fmt.Fprintf(os.Stderr, "autoken: warning: cache seed failed: %s\n", err)
		}
	}

	ctx := driver.RunSession(adapter, cfg, table)
	if ctx.Err != nil {
		if fc != nil {
			fc.Close()
		}
		reportFatal(ctx.Err)
	}

	if fc != nil {
		ctx.Table.All(func(subj ir.Subject, m facts.Map) {
			if err := fc.Store(subj, m, fingerprintFor(adapter)(subj)); err != nil {
				fmt.Fprintf(os.Stderr, "autoken: warning: cache store failed: %s\n", err)
			}
		})
		fc.Close()
	}

	printReport(ctx.Report)

	if cfg.WireOut != "" {
		if err := writeWireReport(cfg.WireOut, ctx.Report); err != nil {
			fmt.Fprintf(os.Stderr, "autoken: warning: wire export failed: %s\n", err)
		}
	}

	os.Exit(driver.ExitCode(ctx.Report, nil))
}

func parseArgs(args []string) (configPath, dir string, patterns []string) {
	dir = "."
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-config":
			if i+1 < len(args) {
				configPath = args[i+1]
				i++
			}
		case "-dir":
			if i+1 < len(args) {
				dir = args[i+1]
				i++
			}
		default:
			if !strings.HasPrefix(args[i], "-") {
				patterns = append(patterns, args[i])
			}
		}
	}
	return configPath, dir, patterns
}

func fingerprintFor(a *goir.Adapter) func(ir.Subject) string {
	return func(subj ir.Subject) string {
		if subj.Kind == ir.SubjectInstance {
			return a.Fingerprint(subj.Instance)
		}
		return ""
	}
}

func reportFatal(err error) {
	st := errs.Classify(err)
	fmt.Fprintf(os.Stderr, "autoken: %s (%s)\n", st.Message(), errs.ExitCategory(st))
	os.Exit(config.ExitFatal)
}

func writeWireReport(path string, report *diagnostic.Report) error {
	data, err := wire.Marshal(report)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// colorize wraps s in an ANSI color code when stderr is a real terminal;
// non-interactive runs (CI logs, redirected output) get plain text.
func colorize(code, s string) string {
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		return s
	}
	return "\x1b[" + code + "m" + s + "\x1b[0m"
}

func printReport(report *diagnostic.Report) {
	for _, d := range report.Diagnostics {
		label := string(d.Kind)
		if d.Severity == diagnostic.SeverityWarning {
			label = colorize("33", label)
		} else {
			label = colorize("31", label)
		}
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", d.Location, label, d.Message)
	}
	if len(report.Diagnostics) == 0 {
		fmt.Fprintln(os.Stderr, colorize("32", "no borrow conflicts found"))
	}
}
