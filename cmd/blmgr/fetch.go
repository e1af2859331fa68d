package main

import (
	"fmt"
	"io"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func fetchCmd(app *Application) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Download the files of every enabled repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, closeManifest, err := app.buildFetcher()
			if err != nil {
				return err
			}
			defer closeManifest()

			sink := app.sink()
			defer sink.Close()
			res, err := f.FetchAll(cmd.Context(), app.registry(), sink)
			if err != nil {
				return err
			}
			app.success("Downloaded %d files", res.Downloaded)
			return nil
		},
	}
}

func manifestCmd(app *Application) *cobra.Command {
	return &cobra.Command{
		Use:   "manifest",
		Short: "List recorded downloads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := app.openManifest()
			if err != nil {
				return err
			}
			defer func() { _ = m.Close() }()

			entries, err := m.List()
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				app.warning("No downloads recorded yet")
				return nil
			}

			data := [][]string{{"Path", "Source", "Bytes", "SHA-256", "Fetched"}}
			for _, e := range entries {
				data = append(data, []string{
					e.Path,
					e.SourceID,
					printer.Sprintf("%d", e.Bytes),
					shortHash(e.SHA256),
					e.FetchedAt.Local().Format(time.DateTime),
				})
			}
			if err := renderTable(app.out, data); err != nil {
				return err
			}

			st := m.Stats()
			updated := "never"
			if st.UpdatedUnix > 0 {
				updated = time.Unix(st.UpdatedUnix, 0).Local().Format(time.DateTime)
			}
			fmt.Fprintf(app.out, "%s entries, last updated %s\n", printer.Sprintf("%d", st.Entries), updated)
			return nil
		},
	}
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

func renderTable(w io.Writer, data [][]string) error {
	return pterm.DefaultTable.
		WithHasHeader().
		WithData(pterm.TableData(data)).
		WithWriter(w).
		Render()
}
