package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewDeployCmd создаёт группу команд для управления развёртываниями.
func NewDeployCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Manage deployments",
	}

	cmd.AddCommand(
		newDeployListCmd(clientFn, outputFn),
		newDeployStartCmd(clientFn, outputFn),
		newDeployShowCmd(clientFn, outputFn),
		newDeployStopCmd(clientFn, outputFn),
		newDeployServicesCmd(clientFn, outputFn),
	)

	return cmd
}

func newDeployListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var stackID string
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List deployments",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			deployments, err := client.ListDeployments(ListDeploymentsOpts{
				StackID: stackID,
				Status:  status,
				Limit:   limit,
			})
			if err != nil {
				return err
			}

			headers := []string{"ID", "STACK_ID", "VERSION", "STATUS", "CREATED"}
			rows := make([][]string, len(deployments))
			for i, d := range deployments {
				rows[i] = []string{d.ID, d.StackID, strconv.Itoa(d.Version), d.Status, d.CreatedAt}
			}

			out.Print(headers, rows, deployments)
			return nil
		},
	}

	cmd.Flags().StringVar(&stackID, "stack-id", "", "Filter by stack ID")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (PENDING, STARTING, RUNNING, DEGRADED, FAILED, STOPPING, STOPPED)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newDeployStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var version int
	var inputs []string
	var idempotencyKey string

	cmd := &cobra.Command{
		Use:   "start STACK_ID",
		Short: "Start a new deployment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := CreateDeploymentRequest{
				IdempotencyKey: idempotencyKey,
			}

			if cmd.Flags().Changed("version") {
				req.Version = &version
			}

			if len(inputs) > 0 {
				req.Inputs = make(map[string]string)
				for _, kv := range inputs {
					parts := strings.SplitN(kv, "=", 2)
					if len(parts) != 2 {
						return fmt.Errorf("invalid input format %q, expected KEY=VALUE", kv)
					}
					req.Inputs[parts[0]] = parts[1]
				}
			}

			deployment, err := client.CreateDeployment(args[0], req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Deployment started: %s", deployment.ID))
			out.Print(
				[]string{"ID", "STACK_ID", "VERSION", "STATUS", "CREATED"},
				[][]string{{deployment.ID, deployment.StackID, strconv.Itoa(deployment.Version), deployment.Status, deployment.CreatedAt}},
				deployment,
			)
			return nil
		},
	}

	cmd.Flags().IntVar(&version, "version", 0, "Stack version (latest if not specified)")
	cmd.Flags().StringSliceVar(&inputs, "input", nil, "Input values as KEY=VALUE (repeatable)")
	cmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "Idempotency key")

	return cmd
}

func newDeployShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show deployment details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			deployment, err := client.GetDeployment(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ID", "STACK_ID", "VERSION", "STATUS", "ERROR", "CREATED"},
				[][]string{{deployment.ID, deployment.StackID, strconv.Itoa(deployment.Version), deployment.Status, deployment.Error, deployment.CreatedAt}},
				deployment,
			)
			return nil
		},
	}
}

func newDeployStopCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "stop ID",
		Short: "Stop a running deployment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			deployment, err := client.StopDeployment(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Deployment stopping: %s", deployment.ID))
			return nil
		},
	}
}

func newDeployServicesCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "services DEPLOYMENT_ID",
		Short: "List services of a deployment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			states, err := client.ListServices(args[0])
			if err != nil {
				return err
			}

			headers := []string{"SERVICE", "STATUS", "CONTAINER", "ATTEMPT", "EXIT", "ERROR"}
			rows := make([][]string, len(states))
			for i, s := range states {
				exit := ""
				if s.ExitCode != nil {
					exit = strconv.Itoa(*s.ExitCode)
				}
				rows[i] = []string{
					s.ServiceName, s.Status, shortContainerID(s.ContainerID),
					strconv.Itoa(s.Attempt), exit, s.Error,
				}
			}

			out.Print(headers, rows, states)
			return nil
		},
	}
}

// shortContainerID обрезает идентификатор контейнера до 12 символов.
func shortContainerID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
