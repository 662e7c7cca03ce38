package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/newthinker/stockscope/internal/app"
	"github.com/newthinker/stockscope/internal/screener"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	screenMarkets      []string
	screenPriceChange  float64
	screenVolumeRatio  float64
	screenMinMarketCap float64
	screenRSI          string
	screenLimit        int
)

var screenCmd = &cobra.Command{
	Use:   "screen",
	Short: "Screen stocks by momentum",
	Long: `Filter a market universe by absolute price change, volume ratio, RSI band
and market cap, then rank by momentum score.`,
	RunE: runScreen,
}

func init() {
	f := screenCmd.Flags()
	f.StringSliceVarP(&screenMarkets, "market", "m", nil, "markets to include: US, HK, CN or all (repeatable)")
	f.Float64Var(&screenPriceChange, "price-change", 0, "minimum absolute change percent")
	f.Float64Var(&screenVolumeRatio, "volume-ratio", 0, "minimum volume ratio")
	f.Float64Var(&screenMinMarketCap, "min-market-cap", 0, "minimum market cap in billions")
	f.StringVar(&screenRSI, "rsi", screener.AllBands, `RSI band "min-max" or "all"`)
	f.IntVarP(&screenLimit, "limit", "n", 0, "maximum results (default from config)")

	rootCmd.AddCommand(screenCmd)
}

func runScreen(cmd *cobra.Command, args []string) error {
	req := screener.Request{
		Markets:  screenMarkets,
		RSIRange: screenRSI,
		Limit:    screenLimit,
	}
	// only flags the user set become thresholds
	if cmd.Flags().Changed("price-change") {
		req.PriceChange = &screenPriceChange
	}
	if cmd.Flags().Changed("volume-ratio") {
		req.VolumeRatio = &screenVolumeRatio
	}
	if cmd.Flags().Changed("min-market-cap") {
		req.MinMarketCap = &screenMinMarketCap
	}

	return withApp(func(ctx context.Context, a *app.App, log *zap.Logger) error {
		criteria, err := screener.ParseCriteria(req, a.Config().Screening.MaxResults)
		if err != nil {
			return err
		}

		res := a.Service().ScreenStocks(ctx, criteria)
		printOrigin("screen "+res.Criteria, res.Origin)

		if len(res.Candidates) == 0 {
			fmt.Println("No stocks matched.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SCORE\tSYMBOL\tNAME\tMARKET\tPRICE\tCHANGE %\tVOL RATIO\tRSI\tMKT CAP (B)\t")
		fmt.Fprintln(w, "-----\t------\t----\t------\t-----\t--------\t---------\t---\t-----------\t")
		for _, c := range res.Candidates {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.2f\t%+.2f%%\t%.2f\t%.1f\t%.1f\t\n",
				c.Score, c.Symbol, c.Name, c.Market, c.Price, c.ChangePercent, c.VolumeRatio, c.RSI, c.MarketCap)
		}
		w.Flush()

		log.Debug("screen complete",
			zap.Int("count", len(res.Candidates)),
			zap.String("markets", strings.Join(screenMarkets, ",")),
		)
		return nil
	})
}
