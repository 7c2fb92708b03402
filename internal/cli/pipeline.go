package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// NewPipelineCmd создаёт группу команд для управления pipelines.
func NewPipelineCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Manage pipelines",
	}

	cmd.AddCommand(
		newPipelineListCmd(clientFn, outputFn),
		newPipelineCreateCmd(clientFn, outputFn),
		newPipelineShowCmd(clientFn, outputFn),
		newPipelineCurrentCmd(clientFn, outputFn),
		newPipelineSyncCmd(clientFn, outputFn),
		newPipelineRenameCmd(clientFn, outputFn),
		newPipelineDeleteCmd(clientFn, outputFn),
	)

	return cmd
}

func pipelineRow(p *PipelineResponse) []string {
	return []string{
		p.ID, p.Name, p.Status,
		strconv.Itoa(len(p.Nodes)), strconv.Itoa(len(p.Edges)),
		p.UpdatedAt,
	}
}

var pipelineHeaders = []string{"ID", "NAME", "STATUS", "NODES", "EDGES", "UPDATED"}

func newPipelineListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved pipelines",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			pipelines, err := client.ListPipelines()
			if err != nil {
				return err
			}

			rows := make([][]string, len(pipelines))
			for i := range pipelines {
				rows[i] = pipelineRow(&pipelines[i])
			}

			out.Print(pipelineHeaders, rows, pipelines)
			return nil
		},
	}
}

func newPipelineCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new draft pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			p, err := client.CreatePipeline(name)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Pipeline created: %s", p.ID))
			out.Print(pipelineHeaders, [][]string{pipelineRow(p)}, p)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Pipeline name")

	return cmd
}

func newPipelineShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show pipeline graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			p, err := client.GetPipeline(args[0])
			if err != nil {
				return err
			}

			printPipeline(out, p)
			return nil
		},
	}
}

func newPipelineCurrentCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "current",
		Short: "Show the current pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			p, err := client.GetCurrentPipeline()
			if err != nil {
				return err
			}

			printPipeline(out, p)
			return nil
		},
	}
}

// printPipeline выводит сводку и список узлов pipeline.
func printPipeline(out *Output, p *PipelineResponse) {
	if out.jsonMode {
		out.JSON(p)
		return
	}

	out.Table(pipelineHeaders, [][]string{pipelineRow(p)})
	if len(p.Nodes) == 0 {
		return
	}

	out.Success("")
	headers := []string{"NODE", "TYPE", "LABEL", "STATUS", "DEPS"}
	rows := make([][]string, len(p.Nodes))
	for i, n := range p.Nodes {
		var deps string
		for _, e := range p.Edges {
			if e.Target == n.ID {
				if deps != "" {
					deps += ","
				}
				deps += e.Source
			}
		}
		rows[i] = []string{n.ID, n.Type, n.Label, n.Status, deps}
	}
	out.Table(headers, rows)
}

func newPipelineSyncCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "sync ID",
		Short: "Replace a pipeline with a full JSON document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			var doc []byte
			var err error
			if file == "-" {
				doc, err = io.ReadAll(cmd.InOrStdin())
			} else {
				doc, err = os.ReadFile(file)
			}
			if err != nil {
				return fmt.Errorf("failed to read pipeline document: %w", err)
			}

			p, err := client.SyncPipeline(args[0], doc)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Pipeline synced: %s", p.ID))
			printPipeline(out, p)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "-", "Path to pipeline JSON (- for stdin)")

	return cmd
}

func newPipelineRenameCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "rename ID",
		Short: "Rename a pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.RenamePipeline(args[0], name); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Pipeline renamed: %s", args[0]))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New pipeline name (required)")
	cmd.MarkFlagRequired("name")

	return cmd
}

func newPipelineDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeletePipeline(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Pipeline deleted: %s", args[0]))
			return nil
		},
	}
}
