package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/newthinker/stockscope/internal/app"
	"github.com/newthinker/stockscope/internal/core"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	backtestPeriod  string
	backtestMAShort int
	backtestMALong  int
	backtestRSIBuy  float64
	backtestTrades  bool
)

var backtestCmd = &cobra.Command{
	Use:   "backtest SYMBOL",
	Short: "Backtest the MA crossover + RSI strategy",
	Long: `Buy when the short moving average crosses above the long one while RSI is
above the threshold; sell on the opposite cross. Zero flags take the config defaults.`,
	Args: cobra.ExactArgs(1),
	RunE: runBacktest,
}

func init() {
	f := backtestCmd.Flags()
	f.StringVarP(&backtestPeriod, "period", "p", "", "history lookback (default from config)")
	f.IntVar(&backtestMAShort, "ma-short", 0, "short moving average window")
	f.IntVar(&backtestMALong, "ma-long", 0, "long moving average window")
	f.Float64Var(&backtestRSIBuy, "rsi-buy", 0, "buy only when RSI is above this")
	f.BoolVar(&backtestTrades, "trades", false, "list every closed trade")

	rootCmd.AddCommand(backtestCmd)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	if backtestPeriod != "" && !core.KnownPeriod(backtestPeriod) {
		return fmt.Errorf("unknown period %q", backtestPeriod)
	}

	return withApp(func(ctx context.Context, a *app.App, log *zap.Logger) error {
		params := a.BacktestDefaults()
		if backtestMAShort != 0 {
			params.MAShort = backtestMAShort
		}
		if backtestMALong != 0 {
			params.MALong = backtestMALong
		}
		if cmd.Flags().Changed("rsi-buy") {
			params.RSIBuyThreshold = backtestRSIBuy
		}
		if err := a.Service().ValidateBacktest(params); err != nil {
			return err
		}

		report := a.Service().RunBacktest(ctx, args[0], backtestPeriod, params)
		printOrigin(report.Symbol+" "+report.Period, report.Origin)

		res := report.Result
		m := res.Metrics
		fmt.Printf("Strategy:      MA(%d)/MA(%d), RSI > %.0f\n", params.MAShort, params.MALong, params.RSIBuyThreshold)
		fmt.Printf("Trades:        %d (%d won, %d lost)\n", m.TotalTrades, m.WinningTrades, m.LosingTrades)
		fmt.Printf("Win rate:      %.2f%%\n", m.WinRate)
		fmt.Printf("Total return:  %.2f%%\n", m.TotalReturn)
		fmt.Printf("Avg return:    %.2f%%\n", m.AvgReturn)
		fmt.Printf("Max drawdown:  %.2f%%\n", m.MaxDrawdown)
		fmt.Printf("Sharpe ratio:  %.2f\n", m.SharpeRatio)
		fmt.Printf("Final cash:    %.2f\n", res.FinalCash)
		if p := res.OpenPosition; p != nil {
			fmt.Printf("Open position: %d shares @ %.2f\n", p.Shares, p.EntryPrice)
		}

		if backtestTrades && len(res.Trades) > 0 {
			fmt.Println()
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ENTRY\tEXIT\tSHARES\tBUY\tSELL\tP&L\tRETURN\t")
			fmt.Fprintln(w, "-----\t----\t------\t---\t----\t---\t------\t")
			for _, t := range res.Trades {
				fmt.Fprintf(w, "%s\t%s\t%d\t%.2f\t%.2f\t%+.2f\t%+.2f%%\t\n",
					t.EntryLabel, t.ExitLabel, t.Shares, t.EntryPrice, t.ExitPrice, t.Profit, t.Return*100)
			}
			w.Flush()
		}

		log.Debug("backtest complete", zap.String("symbol", report.Symbol), zap.Bool("mock", report.IsMock()))
		return nil
	})
}
