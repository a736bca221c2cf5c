package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/ffi-bridge/config"
	"github.com/wippyai/ffi-bridge/export"
	"github.com/wippyai/ffi-bridge/layout"
)

var scalarTypes = map[string]wit.Type{
	"void": nil,
	"bool": wit.Bool{},
	"u8":   wit.U8{},
	"u16":  wit.U16{},
	"u32":  wit.U32{},
	"u64":  wit.U64{},
	"s8":   wit.S8{},
	"s16":  wit.S16{},
	"s32":  wit.S32{},
	"s64":  wit.S64{},
	"f32":  wit.F32{},
	"f64":  wit.F64{},
}

func parseScalar(name string) (wit.Type, error) {
	t, ok := scalarTypes[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown type %q", name)
	}
	return t, nil
}

func (a *app) newLibrary(ctx context.Context) (*export.Library, error) {
	return export.New(ctx, a.cfg, export.WithLogger(a.log))
}

func newLayoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "layout [ok] [err]",
		Short: "Print the record layout of result<ok, err>",
		Long:  "Print the record layout of result<ok, err>. Types: void bool u8..u64 s8..s64 f32 f64. Defaults to f64 void.",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			names := []string{"f64", "void"}
			copy(names, args)
			ok, err := parseScalar(names[0])
			if err != nil {
				return err
			}
			errT, err := parseScalar(names[1])
			if err != nil {
				return err
			}

			info := layout.ResultOf(ok, errT)
			p := newPainter(a.out)
			fmt.Fprintln(a.out, p.paint(funcStyle, layout.ResultName(ok, errT)))

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "  size\t%d\n", info.Size)
			fmt.Fprintf(tw, "  align\t%d\n", info.Align)
			if info.HasOK {
				fmt.Fprintf(tw, "  ok\t%s\toffset 0\tsize %d\n", layout.CName(ok), info.OK.Size)
			}
			if info.HasErr {
				fmt.Fprintf(tw, "  err\t%s\toffset 0\tsize %d\n", layout.CName(errT), info.Err.Size)
			}
			fmt.Fprintf(tw, "  is_ok\tbool\toffset %d\tsize 1\n", info.IsOKOffset)
			return tw.Flush()
		},
	}
}

func signature(f *export.Func) string {
	params := make([]string, len(f.Params))
	for i := range f.Params {
		params[i] = f.ParamNames[i] + " " + typeName(f, i)
	}
	s := f.Name + "(" + strings.Join(params, ", ") + ")"
	if len(f.Results) > 0 {
		s += " -> " + f.ResultNames[0]
	}
	if f.Returns != "" {
		s += " => *retptr " + f.Returns
	}
	return s
}

func newSymbolsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "symbols [pattern]",
		Short: "List exported symbols matching a glob",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := a.newLibrary(cmd.Context())
			if err != nil {
				return err
			}
			defer lib.Close(cmd.Context())

			pattern := ""
			if len(args) == 1 {
				pattern = args[0]
			}
			names, err := lib.Symbols(pattern)
			if err != nil {
				return err
			}
			p := newPainter(a.out)
			for _, name := range names {
				f, _ := lib.Func(name)
				fmt.Fprintf(a.out, "%s  %s\n", p.paint(typeStyle, string(f.Convention)), p.paint(funcStyle, signature(f)))
			}
			return nil
		},
	}
}

func newManifestCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Print the library manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			lib, err := a.newLibrary(cmd.Context())
			if err != nil {
				return err
			}
			defer lib.Close(cmd.Context())

			m := lib.Manifest()
			var out []byte
			switch format {
			case "yaml":
				out, err = m.YAML()
			case "json":
				out, err = m.JSON()
			default:
				return fmt.Errorf("unknown format %q (want yaml or json)", format)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, strings.TrimSuffix(string(out), "\n"))
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "output format: yaml or json")
	return cmd
}

func newSchemaCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "schema [config|manifest]",
		Short:     "Print a JSON schema",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"config", "manifest"},
		RunE: func(_ *cobra.Command, args []string) error {
			which := "config"
			if len(args) == 1 {
				which = args[0]
			}
			var (
				out []byte
				err error
			)
			if which == "manifest" {
				out, err = export.ManifestSchema()
			} else {
				out, err = config.Schema()
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, string(out))
			return nil
		},
	}
}

func newDemoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "demo [text]",
		Short: "Run the Utf16Wrap lifecycle on text (default \"hi\")",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := "hi"
			if len(args) == 1 {
				text = args[0]
			}
			return runDemo(cmd.Context(), a, text)
		},
	}
}

func runDemo(ctx context.Context, a *app, text string) error {
	lib, err := a.newLibrary(ctx)
	if err != nil {
		return err
	}
	p := newPainter(a.out)
	step := func(label string, v any) {
		fmt.Fprintf(a.out, "%-22s %s\n", label, p.paint(resultStyle, fmt.Sprint(v)))
	}
	fail := func(label string, err error) {
		fmt.Fprintf(a.out, "%-22s %s\n", label, p.paint(errorStyle, err.Error()))
	}
	// Under the panic policy a rejected call panics instead of returning.
	reject := func(label string, fn func() error) {
		defer func() {
			if r := recover(); r != nil {
				fail(label, fmt.Errorf("panic: %v", r))
			}
		}()
		if err := fn(); err != nil {
			fail(label, err)
		}
	}

	w, err := lib.Objects().FromString(text)
	if err != nil {
		return err
	}
	step("create", w.DebugString())

	view, err := w.BorrowCont()
	if err != nil {
		return err
	}
	units, err := view.Units()
	if err != nil {
		return err
	}
	step("borrow_cont", fmt.Sprintf("%#04x", units))

	again, err := w.BorrowCont()
	if err != nil {
		return err
	}
	first, _ := view.Slice()
	second, _ := again.Slice()
	step("borrow_cont again", fmt.Sprintf("same storage: %t", first == second))

	owned, err := w.Owned()
	if err != nil {
		return err
	}
	ounits, err := owned.Units()
	if err != nil {
		return err
	}
	step("owned", fmt.Sprintf("%#04x at 0x%x", ounits, owned.Ptr()))
	if err := owned.Release(); err != nil {
		return err
	}
	step("release", "ok")
	reject("release again", owned.Release)

	r, err := w.ToF64()
	if err != nil {
		return err
	}
	step("to_f64", r)

	if err := w.Close(); err != nil {
		return err
	}
	step("destroy", w.DebugString())
	reject("view after destroy", func() error {
		_, err := view.Units()
		return err
	})
	reject("borrow after destroy", func() error {
		_, err := w.BorrowCont()
		return err
	})

	st := lib.Arena().Stats()
	step("heap", fmt.Sprintf("%d allocs, %d frees, peak %s of %s",
		st.Allocs, st.Frees, humanize.IBytes(st.PeakBytes), humanize.IBytes(st.Capacity)))

	return lib.Close(ctx)
}
