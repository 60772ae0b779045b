package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// NewStackCmd создаёт группу команд для управления stacks.
func NewStackCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stack",
		Short: "Manage stacks",
	}

	cmd.AddCommand(
		newStackListCmd(clientFn, outputFn),
		newStackCreateCmd(clientFn, outputFn),
		newStackShowCmd(clientFn, outputFn),
		newStackUpdateCmd(clientFn, outputFn),
		newStackDeleteCmd(clientFn, outputFn),
		newStackVersionsCmd(clientFn, outputFn),
		newStackPushCmd(clientFn, outputFn),
	)

	return cmd
}

func newStackListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all stacks",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			stacks, err := client.ListStacks()
			if err != nil {
				return err
			}

			headers := []string{"ID", "NAME", "ACTIVE", "CREATED"}
			rows := make([][]string, len(stacks))
			for i, s := range stacks {
				rows[i] = []string{s.ID, s.Name, strconv.FormatBool(s.IsActive), s.CreatedAt}
			}

			out.Print(headers, rows, stacks)
			return nil
		},
	}
}

func newStackCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new stack",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			stack, err := client.CreateStack(name)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Stack created: %s", stack.ID))
			out.Print(
				[]string{"ID", "NAME", "ACTIVE", "CREATED"},
				[][]string{{stack.ID, stack.Name, strconv.FormatBool(stack.IsActive), stack.CreatedAt}},
				stack,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Stack name (required)")
	cmd.MarkFlagRequired("name")

	return cmd
}

func newStackShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show stack details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			stack, err := client.GetStack(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ID", "NAME", "ACTIVE", "CREATED"},
				[][]string{{stack.ID, stack.Name, strconv.FormatBool(stack.IsActive), stack.CreatedAt}},
				stack,
			)
			return nil
		},
	}
}

func newStackUpdateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name string
	var active string

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update a stack",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := UpdateStackRequest{}
			if cmd.Flags().Changed("name") {
				req.Name = &name
			}
			if cmd.Flags().Changed("active") {
				b, err := strconv.ParseBool(active)
				if err != nil {
					return fmt.Errorf("invalid value for --active: %s", active)
				}
				req.IsActive = &b
			}

			stack, err := client.UpdateStack(args[0], req)
			if err != nil {
				return err
			}

			out.Success("Stack updated")
			out.Print(
				[]string{"ID", "NAME", "ACTIVE", "CREATED"},
				[][]string{{stack.ID, stack.Name, strconv.FormatBool(stack.IsActive), stack.CreatedAt}},
				stack,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New stack name")
	cmd.Flags().StringVar(&active, "active", "", "Set active status (true/false)")

	return cmd
}

func newStackDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a stack",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteStack(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Stack deleted: %s", args[0]))
			return nil
		},
	}
}

func newStackVersionsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "versions STACK_ID",
		Short: "List stack versions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			versions, err := client.ListVersions(args[0])
			if err != nil {
				return err
			}

			headers := []string{"STACK_ID", "VERSION", "CREATED"}
			rows := make([][]string, len(versions))
			for i, v := range versions {
				rows[i] = []string{v.StackID, strconv.Itoa(v.Version), v.CreatedAt}
			}

			out.Print(headers, rows, versions)
			return nil
		},
	}
}

func newStackPushCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var specFile string

	cmd := &cobra.Command{
		Use:   "push STACK_ID",
		Short: "Push a new stack version from a YAML descriptor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			data, err := os.ReadFile(specFile)
			if err != nil {
				return fmt.Errorf("failed to read descriptor file: %w", err)
			}

			version, err := client.PushVersion(args[0], data)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Version %d pushed for stack %s", version.Version, version.StackID))
			out.Print(
				[]string{"STACK_ID", "VERSION", "CREATED"},
				[][]string{{version.StackID, strconv.Itoa(version.Version), version.CreatedAt}},
				version,
			)
			return nil
		},
	}

	cmd.Flags().StringVarP(&specFile, "file", "f", "", "Path to YAML descriptor (required)")
	cmd.MarkFlagRequired("file")

	return cmd
}
