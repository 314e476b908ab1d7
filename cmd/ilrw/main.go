package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/zboralski/lattice"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/ilrewrite/cfg"
	"github.com/wippyai/ilrewrite/config"
	"github.com/wippyai/ilrewrite/eventlog"
	"github.com/wippyai/ilrewrite/il"
	"github.com/wippyai/ilrewrite/instrument"
	"github.com/wippyai/ilrewrite/metadata"
	"github.com/wippyai/ilrewrite/sig"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4"))

	pointStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	skipStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type options struct {
	image       string
	config      string
	methods     string
	output      string
	report      string
	dump        bool
	plan        bool
	graph       bool
	interactive bool
}

func main() {
	var o options
	flag.StringVar(&o.image, "image", "", "Path to module image (TOML)")
	flag.StringVar(&o.config, "config", "", "Path to ilrw.toml (optional)")
	flag.StringVar(&o.methods, "method", "", "Methods to process: Type::Name patterns or tokens, comma-separated")
	flag.StringVar(&o.output, "o", "", "Write the rewritten image to this path")
	flag.StringVar(&o.report, "report", "", "Write a CBOR instrumentation report to this path")
	flag.BoolVar(&o.dump, "dump", false, "Disassemble methods and exit")
	flag.BoolVar(&o.plan, "plan", false, "Show instrumentation points without writing the image or report")
	flag.BoolVar(&o.graph, "cfg", false, "Print control-flow graphs as DOT and exit")
	flag.BoolVar(&o.interactive, "i", false, "Interactive mode with TUI")
	flag.Parse()

	if o.image == "" {
		fmt.Fprintln(os.Stderr, "Usage: ilrw -image <module.toml> [-config ilrw.toml] [-method pattern,...]")
		fmt.Fprintln(os.Stderr, "       ilrw -image <module.toml> -dump | -cfg | -plan")
		fmt.Fprintln(os.Stderr, "       ilrw -image <module.toml> -o <out.toml> [-report report.cbor]")
		fmt.Fprintln(os.Stderr, "       ilrw -image <module.toml> -i  (interactive mode)")
		os.Exit(1)
	}

	if err := run(&o); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(o *options) error {
	conf := config.Default()
	if o.config != "" {
		c, err := config.Load(o.config)
		if err != nil {
			return err
		}
		conf = c
	}

	log, err := conf.Logger()
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer log.Sync()
	instrument.SetLogger(log)
	eventlog.SetLogger(log)

	img, err := metadata.LoadImage(o.image)
	if err != nil {
		return fmt.Errorf("load image: %w", err)
	}
	toks, err := selectMethods(img, o.methods)
	if err != nil {
		return err
	}

	if o.interactive {
		return runInteractive(img, toks, conf)
	}

	styled := term.IsTerminal(int(os.Stdout.Fd()))
	switch {
	case o.dump:
		return dump(img, toks, styled)
	case o.graph:
		return graph(img, toks)
	}

	// a dry run keeps its records in memory
	events := eventlog.New()
	if !o.plan {
		var closer io.Closer
		events, closer, err = conf.OpenEventLog()
		if err != nil {
			return err
		}
		defer closer.Close()
	}

	icfg, err := conf.InstrumentConfig()
	if err != nil {
		return err
	}
	icfg.Logger = log
	icfg.Events = events

	results, err := instrument.NewCoordinator(icfg).RewriteAll(context.Background(), img, toks)
	if err != nil {
		return err
	}
	rep := instrument.NewReport(img.ID(), img.Path(), results)
	printReport(rep, styled)
	log.Info("instrumentation finished",
		zap.Int("methods", len(results)),
		zap.Int("points", rep.Points()),
		zap.Int("events", events.Len()))

	failed := instrument.Failed(results)
	if err := writeOutputs(o, img, rep); err != nil {
		return err
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d methods failed: %w", len(failed), len(results), failed[0].Err)
	}
	return nil
}

// writeOutputs writes the report and the rewritten image unless o asks for a
// dry run.
func writeOutputs(o *options, img *metadata.Image, rep *instrument.Report) error {
	if o.plan {
		return nil
	}
	if o.report != "" {
		data, err := instrument.EncodeReport(rep)
		if err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		if err := os.WriteFile(o.report, data, 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}
	if o.output != "" {
		f, err := os.Create(o.output)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		if err := img.Encode(f); err != nil {
			f.Close()
			return fmt.Errorf("write image: %w", err)
		}
		return f.Close()
	}
	return nil
}

// selectMethods returns the method definitions matching patterns, or all of
// them when patterns is empty. A pattern of the form 0x06xxxxxx selects a
// token directly.
func selectMethods(img *metadata.Image, patterns string) ([]sig.Token, error) {
	all := img.Methods()
	if patterns == "" {
		return all, nil
	}
	var (
		names  []string
		tokens = map[sig.Token]bool{}
	)
	for _, p := range strings.Split(patterns, ",") {
		p = strings.TrimSpace(p)
		var v uint32
		if _, err := fmt.Sscanf(p, "0x%x", &v); err == nil {
			tokens[sig.Token(v)] = true
			continue
		}
		names = append(names, p)
	}
	match := instrument.NewWildcardMatcher(names)

	var out []sig.Token
	for _, tok := range all {
		if tokens[tok] || match.MatchMethod(metadata.MethodName(img, tok)) {
			out = append(out, tok)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no method matches %q", patterns)
	}
	return out, nil
}

func render(styled bool, s lipgloss.Style, text string) string {
	if !styled {
		return text
	}
	return s.Render(text)
}

func decodeMethod(img *metadata.Image, tok sig.Token) (*il.Method, error) {
	body, err := img.MethodBody(tok)
	if err != nil {
		return nil, err
	}
	m, err := il.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", metadata.MethodName(img, tok), err)
	}
	return m, nil
}

func disassemble(img *metadata.Image, tok sig.Token) (string, error) {
	m, err := decodeMethod(img, tok)
	if err != nil {
		return "", err
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, ".maxstack %d\n", m.MaxStack)
	if !m.LocalVarSigTok.IsNil() {
		fmt.Fprintf(&b, ".locals %v\n", m.LocalVarSigTok)
	}
	if err := m.Dump(&b); err != nil {
		return "", err
	}
	return b.String(), nil
}

func dump(img *metadata.Image, toks []sig.Token, styled bool) error {
	for _, tok := range toks {
		text, err := disassemble(img, tok)
		if err != nil {
			return err
		}
		fmt.Println(render(styled, headerStyle, fmt.Sprintf("%s (%v)", metadata.MethodName(img, tok), tok)))
		fmt.Println(text)
	}
	return nil
}

func graph(img *metadata.Image, toks []sig.Token) error {
	namer := func(t sig.Token) string { return metadata.MethodName(img, t) }
	funcs := make([]*lattice.FuncCFG, 0, len(toks))
	for _, tok := range toks {
		m, err := decodeMethod(img, tok)
		if err != nil {
			return err
		}
		funcs = append(funcs, cfg.Build(namer(tok), m, namer))
	}
	fmt.Print(cfg.DOT(img.Path(), funcs...))
	return nil
}

func printReport(rep *instrument.Report, styled bool) {
	for _, m := range rep.Methods {
		if len(m.Points) == 0 && len(m.Skipped) == 0 && m.Error == "" {
			continue
		}
		fmt.Println(render(styled, headerStyle, m.Name))
		for _, p := range m.Points {
			line := fmt.Sprintf("  #%d IL_%04x %s -> %s", p.ID, p.Offset, p.Callee, p.Interface)
			if p.Arguments > 0 {
				line += fmt.Sprintf(" (%d arguments)", p.Arguments)
			}
			fmt.Println(render(styled, pointStyle, line))
		}
		for _, s := range m.Skipped {
			fmt.Println(render(styled, skipStyle, fmt.Sprintf("  skip IL_%04x %v: %s", s.Offset, sig.Token(s.Token), s.Reason)))
		}
		if m.Error != "" {
			fmt.Println(render(styled, errorStyle, "  failed: "+m.Error))
		}
	}
	fmt.Printf("%d methods, %d points\n", len(rep.Methods), rep.Points())
}
