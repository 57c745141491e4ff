package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"addtocal/internal/ics"
	"addtocal/internal/model"
	"addtocal/internal/timecalc"
	"addtocal/internal/workflow"
)

func newParseCommand(root *rootOptions) *cobra.Command {
	var (
		sets    []string
		icsPath string
	)

	cmd := &cobra.Command{
		Use:   "parse [text...]",
		Short: "Turn text into a calendar link in one go",
		Long: `Extract an event from text, apply any --set edits, confirm it and print
the calendar link. Text is read from stdin when no arguments are given.`,
		Example: `  addtocal parse "dinner with Sam next Monday 6:30pm"
  addtocal parse --set location="Harbour Kitchen" "dinner with Sam monday"
  pbpaste | addtocal parse --ics event.ics`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if strings.TrimSpace(text) == "" {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				text = string(b)
			}

			cfg, loc, err := loadRuntime(root)
			if err != nil {
				return err
			}
			ctrl := newControllerFactory(cfg, loc, newExtractor(cfg))()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			return runParse(ctx, cmd.OutOrStdout(), ctrl, text, sets, icsPath)
		},
	}

	cmd.Flags().StringArrayVar(&sets, "set", nil, "Override a field before confirming, as field=value (repeatable)")
	cmd.Flags().StringVar(&icsPath, "ics", "", "Also write the event as an iCalendar file to this path")

	return cmd
}

// runParse drives ctrl through submit, edits and confirm, then prints the
// result to out.
func runParse(ctx context.Context, out io.Writer, ctrl *workflow.Controller, text string, sets []string, icsPath string) error {
	if err := ctrl.SubmitText(ctx, text); err != nil {
		return fmt.Errorf("%s (%w)", workflow.Message(err), err)
	}

	for _, s := range sets {
		field, value, ok := strings.Cut(s, "=")
		if !ok {
			return fmt.Errorf("--set %q: expected field=value", s)
		}
		if err := ctrl.EditField(strings.TrimSpace(field), value); err != nil {
			return fmt.Errorf("--set %s: %s (%w)", field, workflow.Message(err), err)
		}
	}

	if err := ctrl.Confirm(); err != nil {
		return fmt.Errorf("%s (%w)", workflow.Message(err), err)
	}

	ev, iv, _ := ctrl.Confirmed()
	link := ctrl.Snapshot().Link

	fmt.Fprintln(out, ev.Title)
	if ev.AllDay() {
		fmt.Fprintf(out, "  %s (all day)\n", ev.Date)
	} else {
		fmt.Fprintf(out, "  %s %s - %s (%d min)\n", ev.Date,
			timecalc.Display12h(model.Deref(ev.Time)), timecalc.Display12h(model.Deref(ev.EndTime)),
			int(iv.Duration().Minutes()))
	}
	if ev.Location != "" {
		fmt.Fprintf(out, "  at %s\n", ev.Location)
	}
	if ev.Description != "" {
		fmt.Fprintf(out, "  %s\n", ev.Description)
	}
	fmt.Fprintln(out, link)

	if icsPath != "" {
		if err := os.WriteFile(icsPath, []byte(ics.Export(ev, iv, time.Now())), 0o644); err != nil {
			return err
		}
		fmt.Fprintf(out, "wrote %s\n", icsPath)
	}
	return nil
}
