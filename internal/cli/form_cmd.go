package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/alexanderramin/bookable/internal/autosave"
	"github.com/alexanderramin/bookable/internal/cli/formatter"
	"github.com/alexanderramin/bookable/internal/domain"
	"github.com/alexanderramin/bookable/internal/normalize"
	"github.com/alexanderramin/bookable/internal/optimistic"
	"github.com/alexanderramin/bookable/internal/service"
	"github.com/spf13/cobra"
)

func newFormCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "form",
		Short: "Manage booking forms",
	}

	cmd.AddCommand(
		newFormImportCmd(app),
		newFormListCmd(app),
		newFormShowCmd(app),
		newFormValidateCmd(app),
		newFormPublishCmd(app, true),
		newFormPublishCmd(app, false),
		newFormSetCmd(app),
		newFormHistoryCmd(app),
		newFormRestoreCmd(app),
		newFormExportCmd(app),
		newFormWatchCmd(app),
		newFormDeleteCmd(app),
	)

	return cmd
}

func newFormImportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Import a form from a nested-tree JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := app.Forms.Import(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Imported form %s [%s]: %d groups, %d services, %d questions\n",
				res.Form.InternalName, res.Form.Slug, res.GroupCount, res.ServiceCount, res.QuestionCount)
			fmt.Fprint(out, formatter.ValidationSummary(res.Validation))
			return nil
		},
	}
}

func newFormListCmd(app *App) *cobra.Command {
	var live bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List forms",
		RunE: func(cmd *cobra.Command, args []string) error {
			forms, err := app.Forms.List(cmd.Context(), live)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatFormList(forms))
			return nil
		},
	}

	cmd.Flags().BoolVar(&live, "live", false, "Only list published forms")
	return cmd
}

func newFormShowCmd(app *App) *cobra.Command {
	var ids bool

	cmd := &cobra.Command{
		Use:   "show REF",
		Short: "Show a form's details and service tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := app.Forms.Validate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatFormDetail(report.Form, report.Result, ids))
			return nil
		},
	}

	cmd.Flags().BoolVar(&ids, "ids", false, "Show node ids")
	return cmd
}

func newFormValidateCmd(app *App) *cobra.Command {
	var all, asJSON bool

	cmd := &cobra.Command{
		Use:   "validate [REF]",
		Short: "Validate a form, or every form with --all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var reports []service.FormReport
			switch {
			case all:
				var err error
				if reports, err = app.Forms.ValidateAll(ctx); err != nil {
					return err
				}
			case len(args) == 1:
				r, err := app.Forms.Validate(ctx, args[0])
				if err != nil {
					return err
				}
				reports = []service.FormReport{*r}
			default:
				return fmt.Errorf("form reference is required (or use --all)")
			}

			out := cmd.OutOrStdout()
			if asJSON {
				results := make(map[string]any, len(reports))
				for _, r := range reports {
					results[r.Form.Slug] = r.Result
				}
				return writeJSON(out, results)
			}
			failed := 0
			for _, r := range reports {
				if len(reports) > 1 {
					fmt.Fprintln(out, formatter.Header(r.Form.Slug))
				}
				fmt.Fprint(out, formatter.FormatValidation(r.Result))
				if !r.Result.IsValid {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d forms have validation errors", failed, len(reports))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Validate every stored form")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")
	return cmd
}

func newFormPublishCmd(app *App, enable bool) *cobra.Command {
	use, short, verb := "publish REF", "Publish a form (requires a valid form)", "Published"
	if !enable {
		use, short, verb = "unpublish REF", "Take a form offline", "Unpublished"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := app.Forms.SetEnabled(cmd.Context(), args[0], enable)
			out := cmd.OutOrStdout()
			if errors.Is(err, service.ErrInvalidForm) && report != nil {
				fmt.Fprint(out, formatter.FormatValidation(report.Result))
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s form %s\n", verb, report.Form.Slug)
			return nil
		},
	}
}

func newFormSetCmd(app *App) *cobra.Command {
	var name, slug, color string
	var theme domain.Theme

	cmd := &cobra.Command{
		Use:   "set REF",
		Short: "Update a form's name, slug or branding",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := cmd.Flags()
			patch := service.MetadataPatch{
				Name:         changedString(fs, "name", name),
				Slug:         changedString(fs, "slug", slug),
				PrimaryColor: changedString(fs, "color", color),
			}
			if fs.Changed("theme") {
				patch.Theme = &theme
			}
			if patch == (service.MetadataPatch{}) {
				return fmt.Errorf("nothing to update: pass --name, --slug, --theme or --color")
			}
			if _, err := app.withEditor(cmd.Context(), args[0], func(s *service.EditorSession) (service.Edit, error) {
				return s.UpdateMetadata(patch)
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated form %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Internal name")
	cmd.Flags().StringVar(&slug, "slug", "", "Public slug")
	cmd.Flags().Var(themeValue{&theme}, "theme", "Theme (light|dark)")
	cmd.Flags().StringVar(&color, "color", "", "Primary color (#RRGGBB)")
	return cmd
}

func newFormHistoryCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "history REF",
		Short: "List saved versions of a form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			revs, err := app.Forms.Revisions(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatRevisions(revs))
			return nil
		},
	}
}

func newFormRestoreCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "restore REF VERSION",
		Short: "Save an earlier version's content as the newest version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", args[1], err)
			}
			f, err := app.Forms.Restore(cmd.Context(), args[0], version)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %s to v%d content as v%d\n", f.Slug, version, f.Version)
			return nil
		},
	}
}

func newFormExportCmd(app *App) *cobra.Command {
	var normalized bool

	cmd := &cobra.Command{
		Use:   "export REF",
		Short: "Print a form as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := app.Forms.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if normalized {
				return writeJSON(cmd.OutOrStdout(), normalize.FromForm(f, normalize.WithQuestionIDs(normalize.StableQuestionIDs)))
			}
			return writeJSON(cmd.OutOrStdout(), f)
		},
	}

	cmd.Flags().BoolVar(&normalized, "normalized", false, "Export the flat normalized document")
	return cmd
}

func newFormWatchCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "watch REF",
		Short: "Follow a form, merging changes saved elsewhere until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := service.OpenEditor(ctx, app.Forms, args[0], app.editorOptions()...)
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			defer s.SubscribeAutosave(func(st autosave.State) {
				fmt.Fprintf(out, "%s %s\n", formatter.Dim("autosave"), formatter.AutosaveBadge(st))
			})()
			defer s.SubscribeChanges(func(ev optimistic.Event) {
				if ev.Kind == optimistic.EventSynced {
					f, err := s.Form()
					if err == nil {
						fmt.Fprintf(out, "%s v%d %s\n", formatter.Dim("synced"), f.Version, f.InternalName)
					}
				}
			})()

			interval := app.Config.SyncInterval()
			if interval <= 0 {
				interval = service.DefaultPollInterval
			}
			fmt.Fprintf(out, "Watching %s every %s (Ctrl-C to stop)\n", args[0], interval)
			return service.NewSessionPoller(s, interval, app.Logger).Run(ctx)
		},
	}
}

func newFormDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete REF",
		Short: "Delete a form and its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Forms.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted form %s\n", args[0])
			return nil
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
