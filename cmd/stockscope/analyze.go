package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/newthinker/stockscope/internal/app"
	"github.com/newthinker/stockscope/internal/retrieval"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze SYMBOL",
	Short: "Quote, 6M history, indicators and headlines in one view",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app.App, log *zap.Logger) error {
		an := a.Service().Analyze(ctx, args[0])

		q := an.Quote
		fmt.Printf("%s  %.2f  %+.2f (%+.2f%%)  [%s]\n", an.Symbol, q.Price, q.Change, q.ChangePercent, source(q.Origin))

		if h := an.History; h.Len() > 0 {
			first, last := h.Close[0], h.Close[h.Len()-1]
			fmt.Printf("History %s:  %d bars, %.2f -> %.2f  [%s]\n", h.Period, h.Len(), first, last, source(h.Origin))
		}

		b := an.Indicators
		for _, name := range retrieval.DefaultIndicators {
			if s := b.Series[name]; len(s) > 0 {
				fmt.Printf("%-5s %.2f  [%s]\n", name, s[len(s)-1], source(b.Origin))
			}
		}

		fmt.Printf("\nNews [%s]\n", source(an.News.Origin))
		for _, item := range an.News.Items {
			fmt.Printf("  %s  %s\n", item.PublishedAt.Format("2006-01-02"), item.Title)
		}

		if len(an.Degraded) > 0 {
			fmt.Printf("\nmock data: %s\n", strings.Join(an.Degraded, ", "))
		}
		log.Debug("analysis complete", zap.Strings("degraded", an.Degraded))
		return nil
	})
}
