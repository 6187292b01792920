// Command automan-agent is the peer process a RemoteWorker dials over
// an SSH-spawned channel: `automan-agent serve` reads channel.Requests
// from stdin and writes channel.Replies to stdout until the driver
// hangs up, running Jobs on this host on the driver's behalf.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/automan/pkg/channel"
	"github.com/cuemby/automan/pkg/job"
	"github.com/cuemby/automan/pkg/log"
	"github.com/cuemby/automan/pkg/worker"
)

func main() {
	// A RemoteWorker's own submitted Jobs re-exec this same binary to
	// supervise their child process (job.SuperviseArg); intercept that
	// before cobra ever sees the arguments, exactly as cmd/automan does.
	if len(os.Args) > 2 && os.Args[1] == job.SuperviseArg {
		if err := job.Supervise(os.Args[2]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "automan-agent",
	Short: "resident manager automan's RemoteWorker dials over a channel",
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "output logs in JSON format")
	cobra.OnInitialize(initLogging)
	rootCmd.AddCommand(serveCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOutput, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOutput})
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "serve channel requests on stdin/stdout until EOF",
	RunE: func(cmd *cobra.Command, args []string) error {
		conn := channel.New(os.Stdin, os.Stdout)
		return worker.Serve(conn)
	},
}
