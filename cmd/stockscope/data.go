package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/newthinker/stockscope/internal/app"
	"github.com/newthinker/stockscope/internal/core"
	"github.com/newthinker/stockscope/internal/retrieval"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	historyPeriod  string
	historyRows    int
	newsLimit      int
	indicatorList  string
	indicatorsRows int
)

var quoteCmd = &cobra.Command{
	Use:   "quote SYMBOL...",
	Short: "Show current quotes",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runQuote,
}

var historyCmd = &cobra.Command{
	Use:   "history SYMBOL",
	Short: "Show price history",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

var newsCmd = &cobra.Command{
	Use:   "news SYMBOL",
	Short: "Show recent headlines",
	Args:  cobra.ExactArgs(1),
	RunE:  runNews,
}

var indicatorsCmd = &cobra.Command{
	Use:   "indicators SYMBOL",
	Short: "Show RSI and MACD series",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndicators,
}

func init() {
	historyCmd.Flags().StringVarP(&historyPeriod, "period", "p", "3M", "lookback: 1D 1W 1M 3M 6M 1Y 2Y 3Y 5Y 10Y")
	historyCmd.Flags().IntVarP(&historyRows, "rows", "n", 20, "most recent bars to print (0 for all)")
	newsCmd.Flags().IntVarP(&newsLimit, "limit", "l", 10, "number of headlines")
	indicatorsCmd.Flags().StringVar(&indicatorList, "list", "RSI,MACD", "comma-separated indicators")
	indicatorsCmd.Flags().IntVarP(&indicatorsRows, "rows", "n", 20, "most recent points to print (0 for all)")

	rootCmd.AddCommand(quoteCmd, historyCmd, newsCmd, indicatorsCmd)
}

func runQuote(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app.App, log *zap.Logger) error {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SYMBOL\tPRICE\tCHANGE\tCHANGE %\tVOLUME\tSOURCE\t")
		fmt.Fprintln(w, "------\t-----\t------\t--------\t------\t------\t")

		for _, symbol := range args {
			q := a.Service().GetQuote(ctx, symbol)
			fmt.Fprintf(w, "%s\t%.2f\t%+.2f\t%+.2f%%\t%d\t%s\t\n",
				q.Symbol, q.Price, q.Change, q.ChangePercent, q.Volume, source(q.Origin))
		}
		w.Flush()

		log.Debug("quotes listed", zap.Int("count", len(args)))
		return nil
	})
}

func runHistory(cmd *cobra.Command, args []string) error {
	if !core.KnownPeriod(historyPeriod) {
		return fmt.Errorf("unknown period %q", historyPeriod)
	}
	return withApp(func(ctx context.Context, a *app.App, log *zap.Logger) error {
		h := a.Service().GetHistory(ctx, args[0], historyPeriod)
		printOrigin(h.Symbol, h.Origin)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "DATE\tCLOSE\tHIGH\tLOW\tVOLUME\t")
		fmt.Fprintln(w, "----\t-----\t----\t---\t------\t")
		for i := tailStart(h.Len(), historyRows); i < h.Len(); i++ {
			fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.2f\t%d\t\n",
				h.Labels[i], h.Close[i], h.High[i], h.Low[i], h.Volumes[i])
		}
		w.Flush()

		fmt.Printf("%d bars (%s)\n", h.Len(), h.Period)
		return nil
	})
}

func runNews(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app.App, log *zap.Logger) error {
		feed := a.Service().GetNews(ctx, args[0], newsLimit)
		printOrigin(feed.Symbol, feed.Origin)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PUBLISHED\tSOURCE\tTITLE\t")
		fmt.Fprintln(w, "---------\t------\t-----\t")
		for _, item := range feed.Items {
			fmt.Fprintf(w, "%s\t%s\t%s\t\n",
				item.PublishedAt.Format("2006-01-02 15:04"), item.SourceName, item.Title)
		}
		w.Flush()
		return nil
	})
}

func runIndicators(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app.App, log *zap.Logger) error {
		b := a.Service().GetIndicators(ctx, args[0], strings.Split(indicatorList, ","))
		printOrigin(b.Symbol, b.Origin)

		names := make([]string, 0, len(b.Series))
		for _, name := range retrieval.DefaultIndicators {
			if _, ok := b.Series[name]; ok {
				names = append(names, name)
			}
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		header, rule := "DATE", "----"
		for _, name := range names {
			header += "\t" + name
			rule += "\t" + strings.Repeat("-", len(name))
		}
		fmt.Fprintln(w, header+"\t")
		fmt.Fprintln(w, rule+"\t")
		for i := tailStart(len(b.Labels), indicatorsRows); i < len(b.Labels); i++ {
			fmt.Fprint(w, b.Labels[i])
			for _, name := range names {
				fmt.Fprintf(w, "\t%.2f", b.Series[name][i])
			}
			fmt.Fprintln(w, "\t")
		}
		w.Flush()
		return nil
	})
}

// source renders an origin compactly for table cells.
func source(o core.Origin) string {
	if o.IsMock() {
		return "mock"
	}
	return o.Provider
}

// printOrigin prints a provenance header, including why data is synthetic.
func printOrigin(symbol string, o core.Origin) {
	fmt.Printf("%s  [%s: %s]\n", symbol, o.Provenance, o.Provider)
	if o.IsMock() {
		fmt.Printf("  reason: %s\n", o.Reason)
	}
	if len(o.Unavailable) > 0 {
		fmt.Printf("  unavailable: %s\n", strings.Join(o.Unavailable, ", "))
	}
	fmt.Println()
}

// tailStart returns where to start printing the last rows of n items.
func tailStart(n, rows int) int {
	if rows <= 0 || rows >= n {
		return 0
	}
	return n - rows
}
