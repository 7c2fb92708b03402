package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewExecCmd создаёт группу команд для управления выполнением.
func NewExecCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec",
		Short: "Run pipelines and inspect executions",
	}

	cmd.AddCommand(
		newExecStartCmd(clientFn, outputFn),
		newExecStopCmd(clientFn, outputFn),
		newExecNodeCmd(clientFn, outputFn),
		newExecStatusCmd(clientFn, outputFn),
		newExecHistoryCmd(clientFn, outputFn),
	)

	return cmd
}

var sessionHeaders = []string{"SESSION", "STATUS", "STARTED", "FINISHED"}

func sessionRow(s *SessionResponse) []string {
	return []string{s.ID, s.Status, s.StartedAt, s.FinishedAt}
}

// printSession выводит session и журнал по узлам.
func printSession(out *Output, s *SessionResponse) {
	if out.jsonMode {
		out.JSON(s)
		return
	}

	out.Table(sessionHeaders, [][]string{sessionRow(s)})
	if len(s.Entries) == 0 {
		return
	}

	out.Success("")
	headers := []string{"NODE", "TYPE", "STATUS", "DURATION_MS", "ERROR"}
	rows := make([][]string, len(s.Entries))
	for i, e := range s.Entries {
		rows[i] = []string{e.NodeID, e.Type, e.Status, strconv.FormatInt(e.DurationMs, 10), e.Error}
	}
	out.Table(headers, rows)
}

func newExecStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "start PIPELINE_ID",
		Short: "Start pipeline execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			session, err := client.StartExecution(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Execution started: %s", session.ID))
			printSession(out, session)
			return nil
		},
	}
}

func newExecStopCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "stop PIPELINE_ID",
		Short: "Stop the current execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.StopExecution(args[0]); err != nil {
				return err
			}

			out.Success("Stop requested; the active node finishes at the next poll")
			return nil
		},
	}
}

func newExecNodeCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "node PIPELINE_ID NODE_ID",
		Short: "Re-run a single node",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			session, err := client.ExecuteNode(args[0], args[1])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Node execution started: %s", session.ID))
			printSession(out, session)
			return nil
		},
	}
}

func newExecStatusCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "status PIPELINE_ID",
		Short: "Show the current execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			session, err := client.CurrentExecution(args[0])
			if err != nil {
				return err
			}

			printSession(out, session)
			return nil
		},
	}
}

func newExecHistoryCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history PIPELINE_ID",
		Short: "List past executions (newest first)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			sessions, err := client.ListExecutions(args[0], limit)
			if err != nil {
				return err
			}

			rows := make([][]string, len(sessions))
			for i := range sessions {
				rows[i] = sessionRow(&sessions[i])
			}

			out.Print(sessionHeaders, rows, sessions)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}
