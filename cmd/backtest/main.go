package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	"github.com/moznion/go-optional"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"

	"github.com/quantflare/twse-backtest/internal/backtest/engine"
	enginev1 "github.com/quantflare/twse-backtest/internal/backtest/engine/engine_v1"
	"github.com/quantflare/twse-backtest/internal/logger"
	"github.com/quantflare/twse-backtest/internal/types"
	"github.com/quantflare/twse-backtest/pkg/marketdata"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(22)
	gainStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	lossStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func newProvider(cmd *cli.Command) (marketdata.Provider, error) {
	switch name := cmd.String("provider"); name {
	case "csv":
		return marketdata.NewCSVProvider(cmd.String("data")), nil
	case "polygon":
		return marketdata.NewPolygonProvider(os.Getenv("POLYGON_API_KEY"))
	case "binance":
		return marketdata.NewBinanceProvider(), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}

// runAction loads the config, wires the selected data provider and executes
// the backtest with a progress bar.
func runAction(ctx context.Context, cmd *cli.Command) error {
	config, err := enginev1.LoadConfig(cmd.String("config"))
	if err != nil {
		return err
	}
	if folder := cmd.String("results"); folder != "" {
		config.ResultsFolder = folder
	}

	provider, err := newProvider(cmd)
	if err != nil {
		return err
	}

	lg, err := logger.NewLogger()
	if err != nil {
		return err
	}
	defer lg.Sync()

	backtester := enginev1.NewBacktestEngineV1(config, lg, provider)

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("simulating"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	onProgress := engine.OnProgress(func(current, total int) {
		bar.ChangeMax(total)
		_ = bar.Set(current)
	})

	report, err := backtester.Run(ctx, optional.Some(onProgress))
	if err != nil {
		return err
	}
	_ = bar.Finish()

	printSummary(report)
	return nil
}

// schemaAction prints the JSON schema for the config file.
func schemaAction(_ context.Context, _ *cli.Command) error {
	schema, err := enginev1.GenerateSchemaJSON()
	if err != nil {
		return err
	}
	fmt.Println(schema)
	return nil
}

func printSummary(report *types.Report) {
	returnStyle := gainStyle
	if report.Performance.TotalReturn < 0 {
		returnStyle = lossStyle
	}

	fmt.Println(titleStyle.Render("Backtest results"))
	row := func(label, value string) {
		fmt.Printf("%s%s\n", labelStyle.Render(label), value)
	}
	row("Run", report.ID)
	row("Period", fmt.Sprintf("%s .. %s",
		report.StartDate.Format("2006-01-02"), report.EndDate.Format("2006-01-02")))
	row("Instruments", fmt.Sprintf("%d", len(report.Symbols)))
	row("Final value", fmt.Sprintf("%.2f", report.Performance.FinalValue))
	row("Total return", returnStyle.Render(fmt.Sprintf("%.2f%%", report.Performance.TotalReturn*100)))
	row("Annualized return", fmt.Sprintf("%.2f%%", report.Performance.AnnualizedReturn*100))
	row("Max drawdown", fmt.Sprintf("%.2f%%", report.Performance.MaxDrawdown*100))
	row("Round trips", fmt.Sprintf("%d", report.TradeSummary.TotalTrades))
	row("Win rate", fmt.Sprintf("%.2f%%", report.TradeSummary.WinRate*100))
	row("Profit factor", fmt.Sprintf("%.2f", report.TradeSummary.ProfitFactor))
	if n := len(report.UnfilledOrders); n > 0 {
		row("Unfilled orders", fmt.Sprintf("%d", n))
	}
}

func main() {
	// Optional .env for provider API keys.
	_ = godotenv.Load()

	cmd := &cli.Command{
		Name:  "backtest",
		Usage: "Run rule-based strategy backtests over daily bars",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Execute a backtest from a YAML config",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to the backtest config file",
						Value:   "config/backtest.yaml",
					},
					&cli.StringFlag{
						Name:    "provider",
						Aliases: []string{"p"},
						Usage:   "Market data provider (csv, polygon, binance)",
						Value:   "csv",
					},
					&cli.StringFlag{
						Name:    "data",
						Aliases: []string{"d"},
						Usage:   "Directory with per-symbol CSV files (csv provider)",
						Value:   "data",
					},
					&cli.StringFlag{
						Name:    "results",
						Aliases: []string{"r"},
						Usage:   "Override the results folder from the config",
					},
				},
				Action: runAction,
			},
			{
				Name:   "schema",
				Usage:  "Print the JSON schema of the config file",
				Action: schemaAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
