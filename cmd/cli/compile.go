package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tariffsync/tariff-service/internal/parsers/schedule"
	"github.com/tariffsync/tariff-service/internal/tariff"
)

var (
	compileOut string
	decodeOut  string
)

var compileCmd = &cobra.Command{
	Use:   "compile <schedule>",
	Short: "Compile a schedule file into a tariff document",
	Long: `Compile a YAML, JSON or xlsx schedule into a tariff document. The
document is written as JSON to stdout or to --out. Schedules with gaps,
overlaps or invalid rates are rejected with every problem listed.`,
	Example: `  tariff-sync compile ./schedules/energex-tou.yaml
  tariff-sync compile ./tou.xlsx --out tariff.json`,
	Args: cobra.ExactArgs(1),
	RunE: runCompile,
}

var validateCmd = &cobra.Command{
	Use:   "validate <schedule>",
	Short: "Check a schedule without writing a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

var previewCmd = &cobra.Command{
	Use:   "preview <schedule>",
	Short: "Print a human readable summary of a schedule",
	Args:  cobra.ExactArgs(1),
	RunE:  runPreview,
}

var decodeCmd = &cobra.Command{
	Use:   "decode <document.json>",
	Short: "Turn a tariff document back into an editable YAML schedule",
	Args:  cobra.ExactArgs(1),
	RunE:  runDecode,
}

func init() {
	rootCmd.AddCommand(compileCmd, validateCmd, previewCmd, decodeCmd)

	compileCmd.Flags().StringVar(&compileOut, "out", "", "Write the document to this file instead of stdout")
	decodeCmd.Flags().StringVar(&decodeOut, "out", "", "Write the schedule to this file instead of stdout")
}

func readSchedule(path string) (schedule.File, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return schedule.File{}, fmt.Errorf("failed to read file: %w", err)
	}
	logger.Debug().Str("file", path).Int("bytes", len(content)).Msg("Read schedule")
	return schedule.Parse(content, path)
}

// output writes to path, or to stdout when path is empty
func output(path string, write func(io.Writer) error) error {
	if path == "" {
		return write(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printViolations lists each joined or collected error on its own line
func printViolations(w io.Writer, err error) {
	var errs []error
	if multi, ok := err.(interface{ Unwrap() []error }); ok {
		errs = multi.Unwrap()
	} else {
		errs = []error{err}
	}
	for _, e := range errs {
		fmt.Fprintf(w, "  - %v\n", e)
	}
}

func runCompile(cmd *cobra.Command, args []string) error {
	f, err := readSchedule(args[0])
	if err != nil {
		return err
	}
	doc, seasons, err := f.Compile()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Schedule is invalid:")
		printViolations(os.Stderr, err)
		return errors.New("compile failed")
	}

	logger.Info().
		Int("seasons", len(seasons)).
		Str("fingerprint", tariff.Fingerprint(doc)).
		Msg("Compiled schedule")
	return output(compileOut, func(w io.Writer) error { return writeJSON(w, doc) })
}

func runValidate(cmd *cobra.Command, args []string) error {
	f, err := readSchedule(args[0])
	if err != nil {
		return err
	}
	if err := f.Validate(); err != nil {
		fmt.Println("INVALID")
		printViolations(os.Stdout, err)
		return errors.New("validation failed")
	}
	doc, seasons, err := f.Compile()
	if err != nil {
		return err
	}
	fmt.Printf("OK  %d season(s), fingerprint %s\n", len(seasons), tariff.Fingerprint(doc))
	return nil
}

func runPreview(cmd *cobra.Command, args []string) error {
	f, err := readSchedule(args[0])
	if err != nil {
		return err
	}
	s, err := f.ToSchedule()
	if err != nil {
		printViolations(os.Stderr, err)
		return errors.New("preview failed")
	}
	p := tariff.PreviewSchedule(s)

	fmt.Printf("%s (%s)\n", p.Name, p.Utility)
	fmt.Printf("Currency: %s   Daily: %s\n\n", p.Currency, p.DailyCharge)
	for _, season := range p.Seasons {
		fmt.Printf("%s  %s\n", season.Name, season.DateRange)
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  PERIOD\tDAYS\tTIME\tENERGY\tSELL\tDEMAND")
		for _, period := range season.Periods {
			fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\t%s\n", period.Name, period.Days, period.Time, period.EnergyRate, period.SellRate, period.DemandRate)
		}
		w.Flush()
		fmt.Println()
	}
	return nil
}

func runDecode(cmd *cobra.Command, args []string) error {
	content, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	var doc tariff.TariffDocument
	if err := json.Unmarshal(content, &doc); err != nil {
		return fmt.Errorf("invalid document: %w", err)
	}
	s, err := tariff.DocumentSchedule(&doc)
	if err != nil {
		printViolations(os.Stderr, err)
		return errors.New("decode failed")
	}
	body, err := schedule.MarshalYAML(schedule.FromSchedule(s))
	if err != nil {
		return err
	}
	return output(decodeOut, func(w io.Writer) error {
		_, err := w.Write(body)
		return err
	})
}
