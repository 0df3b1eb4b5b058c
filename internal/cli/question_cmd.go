package cli

import (
	"fmt"
	"strings"

	"github.com/alexanderramin/bookable/internal/domain"
	"github.com/alexanderramin/bookable/internal/service"
	"github.com/spf13/cobra"
)

func newQuestionCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "question",
		Short: "Edit a service's additional questions",
	}

	cmd.PersistentFlags().String("form", "", "Form id or slug")
	_ = cmd.MarkPersistentFlagRequired("form")

	cmd.AddCommand(
		newQuestionAddCmd(app),
		newQuestionRemoveCmd(app),
	)

	return cmd
}

func newQuestionAddCmd(app *App) *cobra.Command {
	var name, label, placeholder string
	var options []string
	var required bool
	qType := domain.QuestionShortText

	cmd := &cobra.Command{
		Use:   "add SERVICE_ID",
		Short: "Add a question to a service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := domain.Question{
				Name:        name,
				Label:       domain.FirstNonEmpty(label, name),
				Type:        qType,
				Required:    required,
				Placeholder: placeholder,
			}
			for _, o := range options {
				value, text, found := strings.Cut(o, "=")
				if !found {
					text = value
				}
				q.Options = append(q.Options, domain.QuestionOption{Value: value, Label: text})
			}
			e, err := app.withEditor(cmd.Context(), formFlag(cmd), func(s *service.EditorSession) (service.Edit, error) {
				return s.AddQuestion(args[0], q)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added question %s (%s) to %s\n", name, e.ID, args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Submitted field name")
	cmd.Flags().StringVar(&label, "label", "", "Label shown to customers (default: name)")
	cmd.Flags().Var(questionTypeValue{&qType}, "type", "Question type")
	cmd.Flags().BoolVar(&required, "required", false, "Answer is required")
	cmd.Flags().StringVar(&placeholder, "placeholder", "", "Placeholder text")
	cmd.Flags().StringSliceVar(&options, "option", nil, "Choice as value or value=label (repeatable)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newQuestionRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "remove SERVICE_ID QUESTION_ID",
		Short: "Remove a question from a service",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.withEditor(cmd.Context(), formFlag(cmd), func(s *service.EditorSession) (service.Edit, error) {
				return s.RemoveQuestion(args[0], args[1])
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed question %s from %s\n", args[1], args[0])
			return nil
		},
	}
}
