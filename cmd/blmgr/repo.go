package main

import (
	"strconv"

	"github.com/haukened/blocklist-manager/internal/blocklist/domain"
	"github.com/haukened/blocklist-manager/internal/blocklist/services/registry"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gitlab.com/tozd/go/errors"
)

func repoCmd(app *Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repo",
		Short: "Manage the repository registry",
	}
	cmd.AddCommand(
		repoListCmd(app),
		repoAddCmd(app),
		repoUpdateCmd(app),
		repoRemoveCmd(app),
		repoToggleCmd(app),
		repoSettingsCmd(app),
	)
	return cmd
}

// sourceFlags binds the editable fields of a repository source.
type sourceFlags struct {
	name, kind, description, dest  string
	apiURL, pattern, url, filename string
	enabled                        bool
}

func (f *sourceFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.name, "name", "", "display name")
	fs.StringVar(&f.kind, "type", "", "source type: github_api, direct_url or github_raw")
	fs.StringVar(&f.description, "description", "", "free-form description")
	fs.StringVar(&f.dest, "dest", "", "destination folder, relative to the default destination")
	fs.StringVar(&f.apiURL, "api-url", "", "listing endpoint (github_api)")
	fs.StringVar(&f.pattern, "pattern", "", "regular expression selecting listed files (github_api)")
	fs.StringVar(&f.url, "url", "", "file URL (direct_url, github_raw)")
	fs.StringVar(&f.filename, "filename", "", "local file name (direct_url, github_raw)")
	fs.BoolVar(&f.enabled, "enabled", false, "enable the repository")
}

// patch returns the changes for every flag set on the command line.
func (f *sourceFlags) patch(fs *pflag.FlagSet) domain.SourcePatch {
	var p domain.SourcePatch
	str := func(flag string, v string, dst **string) {
		if fs.Changed(flag) {
			*dst = &v
		}
	}
	str("name", f.name, &p.Name)
	str("description", f.description, &p.Description)
	str("dest", f.dest, &p.DestinationFolder)
	str("api-url", f.apiURL, &p.APIURL)
	str("pattern", f.pattern, &p.FilePattern)
	str("url", f.url, &p.URL)
	str("filename", f.filename, &p.Filename)
	if fs.Changed("type") {
		kind := domain.SourceKind(f.kind)
		p.Source = &kind
	}
	if fs.Changed("enabled") {
		enabled := f.enabled
		p.Enabled = &enabled
	}
	return p
}

func repoListCmd(app *Application) *cobra.Command {
	var enabledOnly bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List repositories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr := app.registry()
			sources := mgr.All()
			if enabledOnly {
				sources = mgr.Enabled()
			}
			if len(sources) == 0 {
				app.warning("No repositories configured")
				return nil
			}
			data := [][]string{{"ID", "Name", "Type", "Enabled", "Destination"}}
			for _, s := range sources {
				data = append(data, []string{
					s.ID,
					s.DisplayName(),
					string(s.Source),
					strconv.FormatBool(s.Enabled),
					mgr.ResolveDestination(s),
				})
			}
			return renderTable(app.out, data)
		},
	}
	cmd.Flags().BoolVar(&enabledOnly, "enabled", false, "only list enabled repositories")
	return cmd
}

func repoAddCmd(app *Application) *cobra.Command {
	var f sourceFlags
	cmd := &cobra.Command{
		Use:   "add <id>",
		Short: "Add a repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := domain.RepositorySource{
				ID:                args[0],
				Name:              f.name,
				Source:            domain.SourceKind(f.kind),
				Description:       f.description,
				DestinationFolder: f.dest,
				APIURL:            f.apiURL,
				FilePattern:       f.pattern,
				URL:               f.url,
				Filename:          f.filename,
			}
			var opts []registry.AddOption
			if cmd.Flags().Changed("enabled") {
				opts = append(opts, registry.WithEnabled(f.enabled))
			}
			return app.report(app.registry().Add(src, opts...))
		},
	}
	f.register(cmd.Flags())
	return cmd
}

func repoUpdateCmd(app *Application) *cobra.Command {
	var f sourceFlags
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := f.patch(cmd.Flags())
			if patch.IsEmpty() {
				return errors.New("nothing to update")
			}
			return app.report(app.registry().Update(args[0], patch))
		},
	}
	f.register(cmd.Flags())
	return cmd
}

func repoRemoveCmd(app *Application) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.report(app.registry().Remove(args[0]))
		},
	}
}

func repoToggleCmd(app *Application) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "Enable a disabled repository or disable an enabled one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, _, msg := app.registry().Toggle(args[0])
			return app.report(ok, msg)
		},
	}
}

func repoSettingsCmd(app *Application) *cobra.Command {
	var (
		dest          string
		autoEnable    bool
		verify        bool
		maxConcurrent int
	)
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change registry settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr := app.registry()
			fs := cmd.Flags()

			var p domain.SettingsPatch
			if fs.Changed("default-destination") {
				p.DefaultDestination = &dest
			}
			if fs.Changed("auto-enable-new") {
				p.AutoEnableNew = &autoEnable
			}
			if fs.Changed("verify-downloads") {
				p.VerifyDownloads = &verify
			}
			if fs.Changed("max-concurrent-downloads") {
				p.MaxConcurrentDownloads = &maxConcurrent
			}
			if p != (domain.SettingsPatch{}) {
				if err := app.report(mgr.UpdateSettings(p)); err != nil {
					return err
				}
			}

			s := mgr.Settings()
			return renderTable(app.out, [][]string{
				{"Setting", "Value"},
				{"default_destination", s.DefaultDestination},
				{"auto_enable_new", strconv.FormatBool(s.AutoEnableNew)},
				{"verify_downloads", strconv.FormatBool(s.VerifyDownloads)},
				{"max_concurrent_downloads", strconv.Itoa(s.MaxConcurrentDownloads)},
			})
		},
	}
	cmd.Flags().StringVar(&dest, "default-destination", "", "base folder for downloads")
	cmd.Flags().BoolVar(&autoEnable, "auto-enable-new", true, "enable repositories when they are added")
	cmd.Flags().BoolVar(&verify, "verify-downloads", false, "reject empty or truncated downloads")
	cmd.Flags().IntVar(&maxConcurrent, "max-concurrent-downloads", 5, "stored for compatibility; downloads run one at a time")
	return cmd
}

// report prints a registry message and turns a failure into an error.
func (app *Application) report(ok bool, msg string) error {
	if !ok {
		return errors.New(msg)
	}
	app.success("%s", msg)
	return nil
}
