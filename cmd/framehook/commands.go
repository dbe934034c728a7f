package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/dshills/framehook/internal/extension"
)

// load auto-loads the configured packages and reports failures on stderr.
// With strict set, any failed unit fails the command.
func (s *session) load(ctx context.Context, strict bool) (*extension.Report, error) {
	report, err := s.runtime.Load(ctx)
	if err != nil {
		return nil, err
	}
	if strict {
		return report, report.Err()
	}
	return report, nil
}

func newLoadCmd(s *session) *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Auto-load extensions and report the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := s.load(cmd.Context(), strict)
			if report != nil {
				out := cmd.OutOrStdout()
				for _, id := range report.Loaded {
					fmt.Fprintf(out, "loaded   %s\n", id)
				}
				for _, f := range report.Failed {
					fmt.Fprintf(out, "failed   %s\n", f.Identity)
				}
				fmt.Fprintln(out, report.Summary())
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail if any extension fails to load")
	return cmd
}

func newUnwindCmd(s *session) *cobra.Command {
	var framesPath string
	cmd := &cobra.Command{
		Use:   "unwind --frames FILE",
		Short: "Resolve pending frames from a JSON snapshot file",
		Long: `Resolve pending frames against the registered unwinders.

FILE holds a JSON array of frame snapshots, or an object with a "frames"
array. Use "-" to read standard input. One JSON result is written per
frame.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd.InOrStdin(), framesPath)
			if err != nil {
				return err
			}
			if _, err := s.load(cmd.Context(), false); err != nil {
				return err
			}
			out, err := s.runtime.ResolveSnapshots(data)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().StringVar(&framesPath, "frames", "", "Frame snapshot file (- for stdin)")
	_ = cmd.MarkFlagRequired("frames")
	return cmd
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func newUnwindersCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unwinders",
		Short: "List, enable or disable unwinders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.listUnwinders(cmd)
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List registered unwinders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.listUnwinders(cmd)
		},
	}

	toggle := func(use string, enabled bool) *cobra.Command {
		return &cobra.Command{
			Use:   use + " [LOCUS-REGEXP [NAME-REGEXP]]",
			Short: strings.ToUpper(use[:1]) + use[1:] + " unwinders matching the patterns",
			Args:  cobra.MaximumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				if _, err := s.load(cmd.Context(), false); err != nil {
					return err
				}
				locus, name := "", ""
				if len(args) > 0 {
					locus = args[0]
				}
				if len(args) > 1 {
					name = args[1]
				}
				n, err := s.runtime.EnableUnwinders(locus, name, enabled)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d unwinder(s) %sd\n", n, use)
				return nil
			},
		}
	}

	cmd.AddCommand(list, toggle("enable", true), toggle("disable", false))
	return cmd
}

func (s *session) listUnwinders(cmd *cobra.Command) error {
	if _, err := s.load(cmd.Context(), false); err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LOCUS\tSPACE\tNAME\tENABLED")
	for _, u := range s.runtime.Unwinders() {
		space := "-"
		if u.Space != 0 {
			space = strconv.Itoa(u.Space)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\n", u.Locus, space, u.Name, u.Enabled)
	}
	return w.Flush()
}

func newShowCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "show [NAME]",
		Short: "Show one parameter, or all of them",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) > 0 {
				line, err := s.runtime.Execute("show " + strings.Join(args, " "))
				if err != nil {
					return err
				}
				fmt.Fprintln(out, line)
				return nil
			}
			store := s.runtime.Store()
			for _, name := range store.Names() {
				token, err := store.Show(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s is %s\n", name, token)
			}
			return nil
		},
	}
}

func newSetCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "set NAME VALUE",
		Short: "Set a parameter and show the result",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := s.runtime.Execute("set " + strings.Join(args, " ")); err != nil {
				return err
			}
			line, err := s.runtime.Execute("show " + strings.Join(args[:len(args)-1], " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
			return nil
		},
	}
}

func newInvokeCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "invoke NAME [ARGS...]",
		Short: "Call a convenience function registered by an extension",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := s.load(cmd.Context(), false); err != nil {
				return err
			}
			in := make([]any, len(args)-1)
			for i, a := range args[1:] {
				in[i] = parseArg(a)
			}
			v, err := s.runtime.Invoke(args[0], in...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatValue(v))
			return nil
		},
	}
}

func newExecCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "exec COMMAND [ARGS...]",
		Short: "Run a command registered by an extension",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := s.load(cmd.Context(), false); err != nil {
				return err
			}
			out, err := s.runtime.Execute(strings.Join(args, " "))
			if err != nil {
				return err
			}
			if out != "" {
				fmt.Fprintln(cmd.OutOrStdout(), out)
			}
			return nil
		},
	}
}

func newPrintCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "print TYPE VALUE",
		Short: "Format a value with the pretty-printers",
		Long: `Format a value with the first enabled pretty-printer whose pattern
matches TYPE. VALUE is parsed as JSON when it is valid JSON and taken as a
string otherwise.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := s.load(cmd.Context(), false); err != nil {
				return err
			}
			text, err := s.runtime.Print(args[0], parseValue(args[1]))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
}

func newWatchCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Load extensions and reload them when their files change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			report, err := s.load(ctx, false)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.Summary())

			if err := s.runtime.Watch(); err != nil {
				return err
			}
			s.logger.Info().Str("dir", s.runtime.Loader().ExtensionDir()).Msg("watching for changes")
			if err := s.runtime.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
}

// parseArg turns a command-line word into an integer, float, bool or string.
func parseArg(a string) any {
	if n, err := strconv.ParseInt(a, 0, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(a, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(a); err == nil {
		return b
	}
	return a
}

// parseValue decodes JSON text, or returns text unchanged.
func parseValue(text string) any {
	if !gjson.Valid(text) {
		return text
	}
	return gjson.Parse(text).Value()
}

func formatValue(v any) string {
	if v == nil {
		return "void"
	}
	return fmt.Sprint(v)
}
