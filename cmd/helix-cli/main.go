// Helix CLI — инструмент командной строки для управления
// pipelines, executions и schedules через HTTP API.
//
// Использование:
//
//	helix [--api-url URL] [--user ID] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	pipeline  Управление pipelines
//	node      Правка узлов
//	edge      Правка рёбер
//	exec      Запуск и журнал executions
//	schedule  Управление schedules
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Helix/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var user string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "helix",
		Short:         "Helix CLI — computational pipeline tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8080", "API server URL")
	rootCmd.PersistentFlags().StringVar(&user, "user", "", "User ID (empty for anonymous session)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL, user) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewPipelineCmd(clientFn, outputFn),
		cli.NewNodeCmd(clientFn, outputFn),
		cli.NewEdgeCmd(clientFn, outputFn),
		cli.NewExecCmd(clientFn, outputFn),
		cli.NewScheduleCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
