package cli

import (
	"fmt"
	"strings"

	"github.com/alexanderramin/bookable/internal/domain"
	"github.com/alexanderramin/bookable/internal/service"
	"github.com/alexanderramin/bookable/internal/tree"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func newNodeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Edit a form's service tree",
	}

	cmd.PersistentFlags().String("form", "", "Form id or slug")
	_ = cmd.MarkPersistentFlagRequired("form")

	cmd.AddCommand(
		newNodeAddGroupCmd(app),
		newNodeAddServiceCmd(app),
		newNodeRenameCmd(app),
		newNodeUpdateCmd(app),
		newNodeRemoveCmd(app),
		newNodeMoveCmd(app),
		newNodeReorderCmd(app),
	)

	return cmd
}

func formFlag(cmd *cobra.Command) string {
	ref, _ := cmd.Flags().GetString("form")
	return ref
}

// rootOf returns the form's root id, for commands whose parent defaults to it.
func rootOf(s *service.EditorSession) string {
	return s.Document().RootID
}

func newNodeAddGroupCmd(app *App) *cobra.Command {
	var parent string

	cmd := &cobra.Command{
		Use:   "add-group LABEL",
		Short: "Add a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := app.withEditor(cmd.Context(), formFlag(cmd), func(s *service.EditorSession) (service.Edit, error) {
				if parent == "" {
					parent = rootOf(s)
				}
				return s.AddGroup(parent, args[0])
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added group %s (%s)\n", args[0], e.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&parent, "parent", "", "Parent node id (default: root)")
	return cmd
}

type serviceFlags struct {
	duration, buffer, interval int
	price                      float64
	employees                  []string
	defaultEmployee            string
}

func (f *serviceFlags) register(fs *pflag.FlagSet) {
	fs.IntVar(&f.duration, "duration", 0, "Duration in minutes")
	fs.Float64Var(&f.price, "price", 0, "Price")
	fs.IntVar(&f.buffer, "buffer", 0, "Buffer time after each booking, in minutes")
	fs.IntVar(&f.interval, "interval", 0, "Slot interval in minutes")
	fs.StringSliceVar(&f.employees, "employees", nil, "Assigned employee ids")
	fs.StringVar(&f.defaultEmployee, "default-employee", "", "Default employee id")
}

// apply copies the flags that were set onto d.
func (f *serviceFlags) apply(fs *pflag.FlagSet, d *domain.ServiceDetails) {
	if v := changedInt(fs, "duration", f.duration); v != nil {
		d.Duration = v
	}
	if v := changedFloat(fs, "price", f.price); v != nil {
		d.Price = v
	}
	if v := changedInt(fs, "buffer", f.buffer); v != nil {
		d.BufferTime = v
	}
	if v := changedInt(fs, "interval", f.interval); v != nil {
		d.Interval = v
	}
	if fs.Changed("employees") {
		d.AssignedEmployeeIDs = f.employees
	}
	if v := changedString(fs, "default-employee", f.defaultEmployee); v != nil {
		d.DefaultEmployeeID = *v
	}
}

func (f *serviceFlags) changed(fs *pflag.FlagSet) bool {
	for _, name := range []string{"duration", "price", "buffer", "interval", "employees", "default-employee"} {
		if fs.Changed(name) {
			return true
		}
	}
	return false
}

func newNodeAddServiceCmd(app *App) *cobra.Command {
	var parent string
	var sf serviceFlags

	cmd := &cobra.Command{
		Use:   "add-service LABEL",
		Short: "Add a service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var details domain.ServiceDetails
			sf.apply(cmd.Flags(), &details)
			e, err := app.withEditor(cmd.Context(), formFlag(cmd), func(s *service.EditorSession) (service.Edit, error) {
				if parent == "" {
					parent = rootOf(s)
				}
				return s.AddService(parent, args[0], details)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added service %s (%s)\n", args[0], e.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&parent, "parent", "", "Parent node id (default: root)")
	sf.register(cmd.Flags())
	return cmd
}

func newNodeRenameCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rename ID LABEL",
		Short: "Rename a group or service",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.withEditor(cmd.Context(), formFlag(cmd), func(s *service.EditorSession) (service.Edit, error) {
				return s.Rename(args[0], args[1])
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed node %s to %s\n", args[0], args[1])
			return nil
		},
	}
}

func newNodeUpdateCmd(app *App) *cobra.Command {
	var label, description string
	var sf serviceFlags

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change a node's label, description or service settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := cmd.Flags()
			patch := domain.NodePatch{
				Label:       changedString(fs, "label", label),
				Description: changedString(fs, "description", description),
			}
			touchService := sf.changed(fs)
			if patch.IsEmpty() && !touchService {
				return fmt.Errorf("nothing to update")
			}
			_, err := app.withEditor(cmd.Context(), formFlag(cmd), func(s *service.EditorSession) (service.Edit, error) {
				if touchService {
					f, err := s.Form()
					if err != nil {
						return service.Edit{}, err
					}
					details, err := currentDetails(f, args[0])
					if err != nil {
						return service.Edit{}, err
					}
					sf.apply(fs, &details)
					patch.Service = &details
				}
				return s.UpdateNode(args[0], patch)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated node %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&label, "label", "", "New label")
	cmd.Flags().StringVar(&description, "description", "", "Description")
	sf.register(cmd.Flags())
	return cmd
}

func currentDetails(f *domain.FormConfig, id string) (domain.ServiceDetails, error) {
	n := tree.FindByID(f.ServiceTree, id)
	if n == nil {
		return domain.ServiceDetails{}, fmt.Errorf("node %q: %w", id, tree.ErrNodeNotFound)
	}
	if n.Kind != domain.NodeService {
		return domain.ServiceDetails{}, fmt.Errorf("%q is a %s: %w", id, n.Kind, service.ErrNotService)
	}
	return n.ServiceDetails, nil
}

func newNodeRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "remove ID",
		Short: "Remove a node and everything under it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.withEditor(cmd.Context(), formFlag(cmd), func(s *service.EditorSession) (service.Edit, error) {
				return s.RemoveNode(args[0])
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed node %s\n", args[0])
			return nil
		},
	}
}

func newNodeMoveCmd(app *App) *cobra.Command {
	var to string

	cmd := &cobra.Command{
		Use:   "move ID",
		Short: "Move a node under another container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.withEditor(cmd.Context(), formFlag(cmd), func(s *service.EditorSession) (service.Edit, error) {
				return s.MoveNode(args[0], to)
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Moved node %s under %s\n", args[0], to)
			return nil
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "New parent node id")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newNodeReorderCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "reorder PARENT CHILD...",
		Short: "Set the order of a container's children",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.withEditor(cmd.Context(), formFlag(cmd), func(s *service.EditorSession) (service.Edit, error) {
				return s.ReorderChildren(args[0], args[1:])
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reordered %s: %s\n", args[0], strings.Join(args[1:], ", "))
			return nil
		},
	}
}
