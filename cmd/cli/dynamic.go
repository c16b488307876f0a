package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tariffsync/tariff-service/config"
	"github.com/tariffsync/tariff-service/internal/amber"
	"github.com/tariffsync/tariff-service/internal/http/ratelimit"
	"github.com/tariffsync/tariff-service/internal/parsers/csv"
	"github.com/tariffsync/tariff-service/internal/syncer"
	"github.com/tariffsync/tariff-service/internal/tariff"
)

var (
	dynamicPrices   string
	dynamicNow      string
	dynamicTimezone string
	dynamicAdvance  int
	dynamicOverride string
	dynamicUnit     string
	dynamicSite     string
	dynamicOut      string
	dynamicSources  bool
)

var dynamicCmd = &cobra.Command{
	Use:   "dynamic",
	Short: "Compile a rolling 24 hour tariff from spot prices",
	Long: `Compile a dynamic tariff from the live price API, or replay a CSV price
export with --prices. The CSV needs start or end time, price and channel
columns; prices default to c/kWh.`,
	Example: `  tariff-sync dynamic --site 01H...
  tariff-sync dynamic --prices ./prices.csv --now 2025-01-15T14:15:00+10:00 --sources
  tariff-sync dynamic --prices ./prices.csv --override charge --out tariff.json`,
	Args: cobra.NoArgs,
	RunE: runDynamic,
}

func init() {
	rootCmd.AddCommand(dynamicCmd)

	dynamicCmd.Flags().StringVar(&dynamicPrices, "prices", "", "Replay prices from a CSV file instead of the API")
	dynamicCmd.Flags().StringVar(&dynamicNow, "now", "", "Compile as of this RFC3339 time (default: current time)")
	dynamicCmd.Flags().StringVar(&dynamicTimezone, "timezone", "", "Market timezone (default: compile.timezone)")
	dynamicCmd.Flags().IntVar(&dynamicAdvance, "advance", -1, "Advance notice in half-hour slots (default: compile.advance_notice_slots)")
	dynamicCmd.Flags().StringVar(&dynamicOverride, "override", "", "Manual override: charge or discharge")
	dynamicCmd.Flags().StringVar(&dynamicUnit, "unit", string(csv.UnitCents), "CSV price unit: c/kWh or $/kWh")
	dynamicCmd.Flags().StringVar(&dynamicSite, "site", "", "Price API site ID (default: amber.site_id)")
	dynamicCmd.Flags().StringVar(&dynamicOut, "out", "", "Write the document to this file instead of stdout")
	dynamicCmd.Flags().BoolVar(&dynamicSources, "sources", false, "Print where each slot's price came from instead of the document")
}

func runDynamic(cmd *cobra.Command, args []string) error {
	c := cfg
	if c == nil {
		c = &config.Config{}
	}
	opts, err := syncer.OptionsFrom(c)
	if err != nil {
		return err
	}
	if dynamicTimezone != "" {
		loc, err := time.LoadLocation(dynamicTimezone)
		if err != nil {
			return fmt.Errorf("unknown timezone %q: %w", dynamicTimezone, err)
		}
		opts.Dynamic.Location = loc
	}
	if dynamicAdvance >= 0 {
		opts.Dynamic.AdvanceNoticeSlots = dynamicAdvance
	}
	mode, err := tariff.ParseOverrideMode(dynamicOverride)
	if err != nil {
		return err
	}

	now := time.Now()
	if dynamicNow != "" {
		if now, err = time.Parse(time.RFC3339, dynamicNow); err != nil {
			return fmt.Errorf("invalid --now: %w", err)
		}
	}

	var feed tariff.PriceFeed
	if dynamicPrices != "" {
		feed, opts.Dynamic.Location, err = replayFeed(dynamicPrices, now, opts.Dynamic.Location)
	} else {
		feed, opts.Dynamic.Location, err = liveFeed(cmd.Context(), c, now, opts.Dynamic.Location)
	}
	if err != nil {
		return err
	}

	result, err := tariff.CompileDynamic(now, feed, opts.Dynamic)
	if err != nil {
		return fmt.Errorf("compile failed: %w", err)
	}
	logger.Info().
		Int("tomorrow_slots", result.TomorrowSlots()).
		Int("partial_slots", result.PartialSlots()).
		Int("clamped_slots", result.ClampedSlots()).
		Msg("Compiled dynamic tariff")

	if dynamicSources {
		printSources(os.Stdout, result)
		return nil
	}

	doc, err := tariff.DynamicDocument(tariff.OverrideMeta(opts.Meta, mode), tariff.ApplyOverride(result.Grid, mode))
	if err != nil {
		return err
	}
	return output(dynamicOut, func(w io.Writer) error { return writeJSON(w, doc) })
}

// replayFeed parses a CSV export into a feed split around now
func replayFeed(path string, now time.Time, loc *time.Location) (tariff.PriceFeed, *time.Location, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return tariff.PriceFeed{}, nil, fmt.Errorf("failed to read file: %w", err)
	}

	options := csv.DefaultOptions()
	options.Unit = csv.PriceUnit(dynamicUnit)
	if loc != nil {
		options.Location = loc
	}
	result, err := csv.NewParser(options).Parse(content)
	if err != nil {
		return tariff.PriceFeed{}, nil, err
	}
	for _, rowErr := range result.Errors {
		logger.Warn().Int("row", rowErr.Row).Str("error", rowErr.Message).Msg("Skipped price row")
	}
	if len(result.Prices) == 0 {
		return tariff.PriceFeed{}, nil, errors.New("no valid price rows")
	}
	logger.Info().Int("rows", result.TotalRows).Int("valid", result.ValidRows).Msg("Parsed price file")

	feedLoc := amber.FeedLocation(result.Prices, options.Location)
	return amber.BuildFeed(result.Prices, now, feedLoc), feedLoc, nil
}

func liveFeed(ctx context.Context, c *config.Config, now time.Time, loc *time.Location) (tariff.PriceFeed, *time.Location, error) {
	if c.Amber.APIToken == "" {
		return tariff.PriceFeed{}, nil, errors.New("amber.api_token not configured; use --prices to replay a file")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	client := amber.NewClient(c.Amber, ratelimit.DefaultConfig(), *logger)
	return client.FetchFeed(ctx, dynamicSite, now, loc)
}

func printSources(w io.Writer, result *tariff.DynamicResult) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SLOT\tBUY\tSELL\tFROM\tIMPORT\tEXPORT\tFLAGS")
	for _, src := range result.Sources {
		cell := result.Grid.Cell(tariff.Monday, src.Slot)
		flags := ""
		if src.Partial {
			flags += "partial "
		}
		if src.BuyClamped {
			flags += "buy-clamped "
		}
		if src.SellClamped {
			flags += "sell-clamped"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s %s\t%d\t%d\t%s\n",
			src.Slot, cell.Rate.Buy, cell.Rate.Sell, src.SourceDay, src.SourceSlot,
			src.ImportSamples, src.ExportSamples, flags)
	}
	tw.Flush()
}
