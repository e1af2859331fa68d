package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/haukened/blocklist-manager/internal/blocklist/common/log"
	"github.com/haukened/blocklist-manager/internal/blocklist/domain"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

func newRootCmd(app *Application) *cobra.Command {
	root := &cobra.Command{
		Use:           appName,
		Short:         "Manage, transform and fetch DNS blocklists",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if app.noColor {
				color.NoColor = true
				pterm.DisableColor()
			}
		},
	}
	root.SetOut(app.out)
	root.SetErr(app.errOut)

	root.PersistentFlags().BoolVar(&app.noProgress, "no-progress", false, "do not draw progress bars")
	root.PersistentFlags().BoolVar(&app.noColor, "no-color", false, "disable coloured output")
	root.PersistentFlags().BoolVar(&app.structured, "structured", false, "send status lines to the structured log instead of the console")

	root.AddCommand(
		dedupeCmd(app),
		cleanCmd(app),
		statsCmd(app),
		convertCmd(app),
		mergeCmd(app),
		splitCmd(app),
		fetchCmd(app),
		repoCmd(app),
		manifestCmd(app),
	)
	return root
}

// commandSink is the sink handed to the engines by every command.
type commandSink interface {
	domain.Sink
	Close()
}

// logSink routes engine notifications to the structured logger.
type logSink struct {
	*log.Sink
}

func (logSink) Close() {}

// sink returns the sink for one command run: the structured logger when
// requested, otherwise the console. Progress bars are only drawn on stdout.
func (app *Application) sink() commandSink {
	if app.structured {
		return logSink{log.NewSink(log.Component("cli"))}
	}
	f, ok := app.out.(*os.File)
	return newConsoleSink(app.out, !app.noProgress && ok && f == os.Stdout)
}

func (app *Application) success(format string, args ...any) {
	pterm.Success.WithWriter(app.out).Println(printer.Sprintf(format, args...))
}

func (app *Application) warning(format string, args ...any) {
	pterm.Warning.WithWriter(app.out).Println(printer.Sprintf(format, args...))
}
