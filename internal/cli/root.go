package cli

import (
	"context"
	"log/slog"

	"github.com/alexanderramin/bookable/internal/config"
	"github.com/alexanderramin/bookable/internal/service"
	"github.com/spf13/cobra"
)

// App holds what the commands need: the form service, runtime settings and
// the process logger.
type App struct {
	Forms  service.FormService
	Config config.Config
	Logger *slog.Logger
}

// NewRootCmd creates the top-level "bookable" command and registers all
// subcommands against the provided App.
func NewRootCmd(app *App) *cobra.Command {
	if app.Logger == nil {
		app.Logger = slog.New(slog.DiscardHandler)
	}
	root := &cobra.Command{
		Use:           "bookable",
		Short:         "Build and maintain bookable service forms",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newFormCmd(app),
		newConvertCmd(),
		newNodeCmd(app),
		newQuestionCmd(app),
	)

	return root
}

// editorOptions derives session options from the configuration.
func (a *App) editorOptions() []service.EditorOption {
	return []service.EditorOption{
		service.WithAutosaveConfig(a.Config.AutosaveSettings()),
		service.WithMaxDepth(a.Config.Editor.MaxDepth),
		service.WithEditorLogger(a.Logger),
	}
}

// withEditor opens a session on ref, runs edit, saves the result and closes
// the session.
func (a *App) withEditor(ctx context.Context, ref string, edit func(s *service.EditorSession) (service.Edit, error)) (service.Edit, error) {
	s, err := service.OpenEditor(ctx, a.Forms, ref, a.editorOptions()...)
	if err != nil {
		return service.Edit{}, err
	}
	defer s.Close()

	e, err := edit(s)
	if err != nil {
		return service.Edit{}, err
	}
	if err := s.SaveNow(ctx); err != nil {
		return service.Edit{}, err
	}
	return e, nil
}
