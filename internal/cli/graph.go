package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// NewNodeCmd создаёт группу команд для правки узлов.
func NewNodeCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Edit pipeline nodes",
	}

	cmd.AddCommand(
		newNodeAddCmd(clientFn, outputFn),
		newNodeUpdateCmd(clientFn, outputFn),
		newNodeDeleteCmd(clientFn, outputFn),
	)

	return cmd
}

// NewEdgeCmd создаёт группу команд для правки рёбер.
func NewEdgeCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edge",
		Short: "Edit pipeline edges",
	}

	cmd.AddCommand(
		newEdgeAddCmd(clientFn, outputFn),
		newEdgeDeleteCmd(clientFn, outputFn),
	)

	return cmd
}

// parseConfig разбирает значение флага --config как JSON-объект.
func parseConfig(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var config map[string]any
	if err := json.Unmarshal([]byte(raw), &config); err != nil {
		return nil, fmt.Errorf("invalid --config JSON: %w", err)
	}
	return config, nil
}

func newNodeAddCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var nodeType, label, configJSON string

	cmd := &cobra.Command{
		Use:   "add PIPELINE_ID NODE_ID",
		Short: "Add a node to a pipeline",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			config, err := parseConfig(configJSON)
			if err != nil {
				return err
			}

			p, err := client.AddNode(args[0], AddNodeRequest{
				ID:     args[1],
				Type:   nodeType,
				Label:  label,
				Config: config,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Node added: %s", args[1]))
			printPipeline(out, p)
			return nil
		},
	}

	cmd.Flags().StringVar(&nodeType, "type", "", "Node type: input, structure-generation, sequence-design, structure-prediction, docking (required)")
	cmd.Flags().StringVar(&label, "label", "", "Node label")
	cmd.Flags().StringVar(&configJSON, "config", "", "Node config as JSON object")
	cmd.MarkFlagRequired("type")

	return cmd
}

func newNodeUpdateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var label, configJSON string

	cmd := &cobra.Command{
		Use:   "update PIPELINE_ID NODE_ID",
		Short: "Update a node's label or config",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := UpdateNodeRequest{}
			if cmd.Flags().Changed("label") {
				req.Label = &label
			}
			if cmd.Flags().Changed("config") {
				config, err := parseConfig(configJSON)
				if err != nil {
					return err
				}
				req.Config = config
			}

			p, err := client.UpdateNode(args[0], args[1], req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Node updated: %s", args[1]))
			printPipeline(out, p)
			return nil
		},
	}

	cmd.Flags().StringVar(&label, "label", "", "New node label")
	cmd.Flags().StringVar(&configJSON, "config", "", "New node config as JSON object")

	return cmd
}

func newNodeDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete PIPELINE_ID NODE_ID",
		Short: "Delete a node and its edges",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteNode(args[0], args[1]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Node deleted: %s", args[1]))
			return nil
		},
	}
}

func newEdgeAddCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "add PIPELINE_ID SOURCE TARGET",
		Short: "Add a dependency edge",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			p, err := client.AddEdge(args[0], args[1], args[2])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Edge added: %s -> %s", args[1], args[2]))
			printPipeline(out, p)
			return nil
		},
	}
}

func newEdgeDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete PIPELINE_ID SOURCE TARGET",
		Short: "Delete a dependency edge",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteEdge(args[0], args[1], args[2]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Edge deleted: %s -> %s", args[1], args[2]))
			return nil
		},
	}
}
