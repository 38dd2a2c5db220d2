package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/raven-automation/ravenctl/internal/api"
	"github.com/raven-automation/ravenctl/internal/core"
)

// RegisterPipelineCommands adds pipeline I/O management commands.
func RegisterPipelineCommands(root *cobra.Command) {
	pipeCmd := &cobra.Command{
		Use:   "pipelines",
		Short: "Manage automation pipelines",
	}

	ioCmd := &cobra.Command{
		Use:   "io",
		Short: "Manage pipeline I/O entry points",
	}
	ioCmd.AddCommand(newIOListCmd())
	ioCmd.AddCommand(newIOGetCmd())
	ioCmd.AddCommand(newIOCreateTriggerCmd())
	ioCmd.AddCommand(newIOCreateDataCmd())
	ioCmd.AddCommand(newIOEditCmd())
	ioCmd.AddCommand(newIODeleteCmd())
	ioCmd.AddCommand(newIOCopyCmd())

	pipeCmd.AddCommand(ioCmd)
	root.AddCommand(pipeCmd)
}

func pipelineCapability(cmd *cobra.Command) (*api.PipelineIOCapability, error) {
	env, err := loadEnv(cmd)
	if err != nil {
		return nil, err
	}
	if err := env.RequireUser(); err != nil {
		return nil, err
	}
	client := api.Compose(env.Store, api.PipelineIOMethods())
	pc, _ := api.Find[*api.PipelineIOCapability](client)
	return pc, nil
}

func newIOListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pipeline I/O entry points",
		RunE: func(cmd *cobra.Command, args []string) error {
			pc, err := pipelineCapability(cmd)
			if err != nil {
				return err
			}

			triggersOnly, _ := cmd.Flags().GetBool("triggers")
			dataOnly, _ := cmd.Flags().GetBool("data")
			asJSON, _ := cmd.Flags().GetBool("json")
			if triggersOnly && dataOnly {
				return fmt.Errorf("--triggers and --data are mutually exclusive")
			}

			var list []core.PipelineIO
			switch {
			case triggersOnly:
				list = pc.TriggerIO(cmd.Context())
			case dataOnly:
				list = pc.DataIO(cmd.Context())
			default:
				list = pc.AllIO(cmd.Context())
			}

			if asJSON {
				return printJSON(list)
			}

			if len(list) == 0 {
				fmt.Println("No pipeline I/O entry points found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTYPE\tNAME\tDETAIL\tDESCRIPTION")
			for _, io := range list {
				detail := "-"
				if io.Type == core.IOTrigger {
					detail = orDash(io.Label)
				} else if len(io.Fields) > 0 {
					keys := make([]string, 0, len(io.Fields))
					for _, f := range io.Fields {
						keys = append(keys, f.Key)
					}
					detail = strings.Join(keys, ",")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					io.ID, io.Type, io.Name, detail, orDash(io.Description))
			}
			w.Flush()
			return nil
		},
	}
	cmd.Flags().Bool("triggers", false, "Only trigger-type entry points")
	cmd.Flags().Bool("data", false, "Only data-type entry points")
	cmd.Flags().Bool("json", false, "Print raw JSON")
	return cmd
}

func newIOGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one pipeline I/O entry point",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pc, err := pipelineCapability(cmd)
			if err != nil {
				return err
			}

			io := pc.GetIO(cmd.Context(), args[0])
			if io == nil {
				return fmt.Errorf("pipeline I/O not found: %s", args[0])
			}
			return printJSON(io)
		},
	}
}

func ioModelFlags(cmd *cobra.Command) {
	cmd.Flags().String("name", "", "Entry point name (required)")
	cmd.Flags().String("icon", "", "Icon identifier")
	cmd.Flags().String("description", "", "Human-readable description")
}

func ioModelFromFlags(cmd *cobra.Command) (core.PipelineIOModel, error) {
	name, _ := cmd.Flags().GetString("name")
	if name == "" {
		return core.PipelineIOModel{}, fmt.Errorf("--name is required")
	}

	model := core.PipelineIOModel{Name: name}
	if icon, _ := cmd.Flags().GetString("icon"); icon != "" {
		model.Icon = &icon
	}
	if desc, _ := cmd.Flags().GetString("description"); desc != "" {
		model.Description = &desc
	}
	return model, nil
}

// parseFieldSpec turns "key:type[:label]" into an IOField.
func parseFieldSpec(spec string) (core.IOField, error) {
	parts := strings.SplitN(spec, ":", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return core.IOField{}, fmt.Errorf("invalid --field %q, want key:type[:label]", spec)
	}
	field := core.IOField{Key: parts[0], Type: parts[1], Label: parts[0]}
	if len(parts) == 3 && parts[2] != "" {
		field.Label = parts[2]
	}
	return field, nil
}

func newIOCreateTriggerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-trigger",
		Short: "Create a trigger-type entry point",
		RunE: func(cmd *cobra.Command, args []string) error {
			pc, err := pipelineCapability(cmd)
			if err != nil {
				return err
			}

			model, err := ioModelFromFlags(cmd)
			if err != nil {
				return err
			}
			if label, _ := cmd.Flags().GetString("label"); label != "" {
				model.Label = &label
			}

			created := pc.CreateTriggerIO(cmd.Context(), model)
			if created == nil {
				return fmt.Errorf("could not create trigger entry point")
			}
			fmt.Printf("Created trigger %s (%s)\n", created.Name, created.ID)
			return nil
		},
	}
	ioModelFlags(cmd)
	cmd.Flags().String("label", "", "Button label shown to external callers")
	return cmd
}

func newIOCreateDataCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-data",
		Short: "Create a data-type entry point",
		RunE: func(cmd *cobra.Command, args []string) error {
			pc, err := pipelineCapability(cmd)
			if err != nil {
				return err
			}

			model, err := ioModelFromFlags(cmd)
			if err != nil {
				return err
			}

			fieldSpecs, _ := cmd.Flags().GetStringArray("field")
			for _, spec := range fieldSpecs {
				field, err := parseFieldSpec(spec)
				if err != nil {
					return err
				}
				model.Fields = append(model.Fields, field)
			}

			created := pc.CreateDataIO(cmd.Context(), model)
			if created == nil {
				return fmt.Errorf("could not create data entry point")
			}
			fmt.Printf("Created data entry point %s (%s)\n", created.Name, created.ID)
			return nil
		},
	}
	ioModelFlags(cmd)
	cmd.Flags().StringArray("field", nil, "Field as key:type[:label] (repeatable)")
	return cmd
}

func newIOEditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit an entry point's definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pc, err := pipelineCapability(cmd)
			if err != nil {
				return err
			}

			existing := pc.GetIO(cmd.Context(), args[0])
			if existing == nil {
				return fmt.Errorf("pipeline I/O not found: %s", args[0])
			}

			model := core.PipelineIOModel{
				Type:        existing.Type,
				Name:        existing.Name,
				Icon:        existing.Icon,
				Description: existing.Description,
				Label:       existing.Label,
				Fields:      existing.Fields,
			}
			if name, _ := cmd.Flags().GetString("name"); name != "" {
				model.Name = name
			}
			if icon, _ := cmd.Flags().GetString("icon"); icon != "" {
				model.Icon = &icon
			}
			if desc, _ := cmd.Flags().GetString("description"); desc != "" {
				model.Description = &desc
			}
			if label, _ := cmd.Flags().GetString("label"); label != "" {
				model.Label = &label
			}

			updated := pc.EditIO(cmd.Context(), args[0], model)
			if updated == nil {
				return fmt.Errorf("edit failed for: %s", args[0])
			}
			fmt.Printf("Updated %s\n", updated.ID)
			return nil
		},
	}
	ioModelFlags(cmd)
	cmd.Flags().String("label", "", "Button label (trigger entry points)")
	return cmd
}

func newIODeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an entry point",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pc, err := pipelineCapability(cmd)
			if err != nil {
				return err
			}

			pc.DeleteIO(cmd.Context(), args[0])
			fmt.Printf("Deleted %s\n", args[0])
			return nil
		},
	}
}

func newIOCopyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "copy <id>",
		Short: "Duplicate an entry point",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pc, err := pipelineCapability(cmd)
			if err != nil {
				return err
			}

			copied := pc.DuplicateIO(cmd.Context(), args[0])
			if copied == nil {
				return fmt.Errorf("copy failed for: %s", args[0])
			}
			fmt.Printf("Created copy %s (%s)\n", copied.Name, copied.ID)
			return nil
		},
	}
}
