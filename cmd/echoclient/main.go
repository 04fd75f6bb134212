// Command echoclient is the load-generating client: it opens -c
// concurrent connections to the echo server, each sending -m messages of
// -s bytes, and verifies every echo before exiting.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"echofleet/internal/logging"
)

func main() {
	var opts runOptions

	rootCmd := &cobra.Command{
		Use:   "echoclient",
		Short: "Load-generating client for the scalable TCP echo service",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validate(opts); err != nil {
				return err
			}
			log := logging.For(logging.New(), "client")
			return runLoad(opts, log)
		},
		SilenceUsage: true,
	}

	// -h is claimed by --host below; pre-register --help without a
	// shorthand so cobra's InitDefaultHelpFlag doesn't try to redefine
	// it and panic.
	rootCmd.Flags().Bool("help", false, "help for echoclient")

	rootCmd.Flags().StringVarP(&opts.host, "host", "h", "127.0.0.1", "server host")
	rootCmd.Flags().IntVarP(&opts.port, "port", "p", 9000, "server port")
	rootCmd.Flags().IntVarP(&opts.clientCount, "clients", "c", 1, "number of concurrent clients")
	rootCmd.Flags().IntVarP(&opts.payloadSize, "size", "s", 1024, "payload size in bytes (<= 1024)")
	rootCmd.Flags().IntVarP(&opts.messages, "messages", "m", 1, "messages per client")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func validate(opts runOptions) error {
	if opts.clientCount <= 0 {
		return fmt.Errorf("-c must be > 0")
	}
	if opts.payloadSize <= 0 || opts.payloadSize > 1024 {
		return fmt.Errorf("-s must be > 0 and <= 1024")
	}
	if opts.messages <= 0 {
		return fmt.Errorf("-m must be > 0")
	}
	return nil
}
