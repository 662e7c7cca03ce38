package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/newthinker/stockscope/internal/app"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Test connectivity to every configured provider",
	RunE:  runTest,
}

func init() {
	rootCmd.AddCommand(testCmd)
}

func runTest(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app.App, log *zap.Logger) error {
		results := a.Service().TestConnections(ctx)
		if len(results) == 0 {
			fmt.Println("No providers configured; every request will be served mock data.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PROVIDER\tSTATUS\tLATENCY\tERROR\t")
		fmt.Fprintln(w, "--------\t------\t-------\t-----\t")

		healthy := 0
		for _, r := range results {
			status := "OK"
			if r.OK {
				healthy++
			} else {
				status = r.ErrorKind
			}
			fmt.Fprintf(w, "%s\t%s\t%dms\t%s\t\n", r.Provider, status, r.LatencyMS, r.Error)
		}
		w.Flush()

		fmt.Printf("\n%d of %d providers reachable\n", healthy, len(results))
		log.Debug("connectivity test complete", zap.Int("healthy", healthy))
		return nil
	})
}
