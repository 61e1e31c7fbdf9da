package main

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/reltime"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/timeref"
)

type resolvedTime struct {
	reltime.RelativeTime
	Text string    `json:"text"`
	Time time.Time `json:"time"`
}

type parseOutput struct {
	Text          string         `json:"text"`
	Reference     time.Time      `json:"reference"`
	RelativeTimes []resolvedTime `json:"relative_times"`
	UsedCompound  bool           `json:"used_compound"`
	Start         *time.Time     `json:"start,omitempty"`
	End           *time.Time     `json:"end,omitempty"`
}

func newParseCommand(opts *options) *cobra.Command {
	var ref string
	cmd := &cobra.Command{
		Use:   "parse <text>...",
		Short: "Extract relative time expressions",
		Long: `Extract relative time expressions from text and resolve them against a
reference time. Arguments are joined with spaces.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			refTime, err := parseRef(ref)
			if err != nil {
				return err
			}
			k, err := opts.loadKB()
			if err != nil {
				return err
			}
			text := strings.Join(args, " ")
			analysis := timeref.New(k).Engine().Analyze(cmd.Context(), text)

			out := parseOutput{
				Text:          text,
				Reference:     refTime,
				RelativeTimes: make([]resolvedTime, 0, len(analysis.Times)),
				UsedCompound:  analysis.UsedCompound,
			}
			for _, rt := range analysis.Times {
				out.RelativeTimes = append(out.RelativeTimes, resolvedTime{
					RelativeTime: rt,
					Text:         rt.String(),
					Time:         rt.Time(refTime),
				})
			}
			if start, end, ok := reltime.Range(analysis.Times, refTime); ok {
				out.Start, out.End = &start, &end
			}

			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			w := cmd.OutOrStdout()
			if len(out.RelativeTimes) == 0 {
				fmt.Fprintln(w, "no relative times found")
				return nil
			}
			for _, rt := range out.RelativeTimes {
				fmt.Fprintf(w, "%-24s %s\n", rt.Text, rt.Time.Format(time.RFC3339))
			}
			if out.Start != nil {
				fmt.Fprintf(w, "range: %s .. %s\n", out.Start.Format(time.RFC3339), out.End.Format(time.RFC3339))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&ref, "ref", "", "Reference time in RFC3339 (default now)")
	return cmd
}

func newDatesCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dates <text>...",
		Short: "Classify explicit dates and list relative times",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := opts.loadKB()
			if err != nil {
				return err
			}
			result := timeref.New(k).ParseDates(cmd.Context(), strings.Join(args, " "))
			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), result)
			}

			w := cmd.OutOrStdout()
			if !result.HasDates {
				fmt.Fprintln(w, "no dates found")
				return nil
			}
			literals := make([]string, 0, len(result.ExplicitDates))
			for literal := range result.ExplicitDates {
				literals = append(literals, literal)
			}
			slices.Sort(literals)
			for _, literal := range literals {
				fmt.Fprintf(w, "%-24s %s\n", literal, result.ExplicitDates[literal])
			}
			for _, rt := range result.RelativeTimes {
				fmt.Fprintf(w, "%-24s %s\n", rt.String(), "RELATIVE")
			}
			return nil
		},
	}
	return cmd
}

func parseRef(ref string) (time.Time, error) {
	if ref == "" {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, ref)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --ref %q: want RFC3339", ref)
	}
	return t, nil
}
