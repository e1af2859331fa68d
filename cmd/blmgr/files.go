package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/haukened/blocklist-manager/internal/blocklist/domain"
	"github.com/haukened/blocklist-manager/internal/blocklist/services/merge"
	"github.com/haukened/blocklist-manager/internal/blocklist/services/transform"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"
)

// siblingPath returns path with suffix inserted before its extension.
func siblingPath(path, suffix string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + suffix + ext
}

func dedupeCmd(app *Application) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "dedupe <input>",
		Short: "Remove duplicate lines, keeping the first occurrence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				output = siblingPath(args[0], "_unique")
			}
			sink := app.sink()
			defer sink.Close()
			res, err := app.engine.Dedupe(args[0], output, sink)
			if err != nil {
				return err
			}
			app.success("Kept %d of %d lines (%d duplicates removed) -> %s",
				res.LinesKept, res.LinesRead, res.LinesRead-res.LinesKept, output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default <input>_unique.<ext>)")
	return cmd
}

func cleanCmd(app *Application) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "clean <input>",
		Short: "Remove comment and blank lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				output = siblingPath(args[0], "_clean")
			}
			sink := app.sink()
			defer sink.Close()
			res, err := app.engine.Clean(args[0], output, sink)
			if err != nil {
				return err
			}
			app.success("Kept %d of %d lines -> %s", res.LinesKept, res.LinesRead, output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default <input>_clean.<ext>)")
	return cmd
}

func convertCmd(app *Application) *cobra.Command {
	var output string
	var names []string
	cmd := &cobra.Command{
		Use:   "convert {pihole|adguard} <input file or directory>",
		Short: "Convert entries to Pi-hole or AdGuard syntax",
		Long: "Convert entries to Pi-hole or AdGuard syntax.\n\n" +
			"When the input is a directory, the well-known blocklist files in it are\n" +
			"converted into the output directory.",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"pihole", "adguard"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := domain.ParseDialect(args[0])
			if err != nil {
				return errors.WithStack(err)
			}
			in := args[1]

			sink := app.sink()
			defer sink.Close()

			if fi, err := os.Stat(in); err == nil && fi.IsDir() {
				if output == "" {
					output = filepath.Join(in, target.String())
				}
				res, err := app.engine.ConvertDirectory(in, output, target, names, sink)
				if err != nil {
					return err
				}
				app.success("Converted %d files to %s -> %s", res.FilesProcessed, target, output)
				return nil
			}

			if output == "" {
				output = siblingPath(in, "_"+target.String())
			}
			res, err := app.engine.Convert(in, output, target, sink)
			if err != nil {
				return err
			}
			app.success("Converted %d of %d lines to %s -> %s", res.LinesKept, res.LinesRead, target, output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, or output directory for a directory input")
	cmd.Flags().StringSliceVar(&names, "files", nil, "file names converted from a directory input (default: the standard blocklist names)")
	return cmd
}

func statsCmd(app *Application) *cobra.Command {
	var top int
	cmd := &cobra.Command{
		Use:   "stats <input>",
		Short: "Report line composition and the most blocked domains",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sink := app.sink()
			defer sink.Close()
			st, err := app.engine.Analyze(args[0], top, sink)
			if err != nil {
				return err
			}
			sink.Close()

			fmtInt := func(n int) string { return printer.Sprintf("%d", n) }
			data := [][]string{
				{"Metric", "Count"},
				{"Total lines", fmtInt(st.TotalLines)},
				{"Blank lines", fmtInt(st.BlankLines)},
				{"Comment lines", fmtInt(st.CommentLines)},
				{"Entries", fmtInt(st.Entries)},
				{"Distinct entries", fmtInt(st.DistinctEntries)},
			}
			if err := renderTable(app.out, data); err != nil {
				return err
			}
			if len(st.TopApex) == 0 {
				return nil
			}
			apex := [][]string{{"Domain", "Entries"}}
			for _, a := range st.TopApex {
				apex = append(apex, []string{a.Apex, fmtInt(a.Count)})
			}
			return renderTable(app.out, apex)
		},
	}
	cmd.Flags().IntVar(&top, "top", 10, "number of registrable domains to list (0 disables)")
	return cmd
}

func mergeCmd(app *Application) *cobra.Command {
	var output, pattern string
	cmd := &cobra.Command{
		Use:   "merge <directory>",
		Short: "Merge every matching file under a directory into one deduplicated list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				output = filepath.Join(args[0], "merged_blocklist.txt")
			}
			sink := app.sink()
			defer sink.Close()
			res, err := app.merger.MergeAndDedupe(args[0], output, pattern, sink)
			if err != nil {
				return err
			}
			app.success("Merged %d files: %d lines, %d unique -> %s",
				res.FilesProcessed, res.TotalLines, res.UniqueLines, output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default <directory>/merged_blocklist.txt)")
	cmd.Flags().StringVarP(&pattern, "pattern", "p", merge.DefaultPattern, "glob selecting the files to merge")
	return cmd
}

func splitCmd(app *Application) *cobra.Command {
	var outDir string
	var lines int
	cmd := &cobra.Command{
		Use:   "split <input>",
		Short: "Split a large list into numbered parts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outDir == "" {
				outDir = filepath.Dir(args[0])
			}
			if !cmd.Flags().Changed("lines") {
				lines = app.config.SplitLines
			}
			sink := app.sink()
			defer sink.Close()
			res, err := app.engine.Split(args[0], outDir, lines, sink)
			if err != nil {
				return err
			}
			app.success("Created %d files from %d lines in %s", res.FilesCreated, res.TotalLines, outDir)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "dir", "d", "", "output directory (default: the input's directory)")
	cmd.Flags().IntVarP(&lines, "lines", "n", transform.DefaultSplitLines, "maximum lines per part")
	return cmd
}
