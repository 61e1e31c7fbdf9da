package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/internal/kb"
)

func newKBCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kb",
		Short: "Build, check and inspect the phrase knowledge base",
	}
	cmd.AddCommand(
		newKBCompileCommand(opts),
		newKBCheckCommand(opts),
		newKBStatsCommand(opts),
	)
	return cmd
}

func newKBCompileCommand(opts *options) *cobra.Command {
	var out string
	var skipCheck bool
	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile a seed into a snapshot",
		Long: `Build the knowledge base from --seed (or the embedded seed), check it
for ambiguous phrases and write a snapshot the extractor can load with
knowledgeBase.snapshotPath.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				return errors.New("--out is required")
			}
			start := time.Now()
			var (
				k   *kb.KnowledgeBase
				err error
			)
			if opts.seedPath != "" {
				var seed *kb.Seed
				seed, err = kb.LoadSeedFile(opts.seedPath)
				if err == nil {
					k, err = kb.FromSeed(seed)
				}
			} else {
				k, err = kb.Default()
			}
			if err != nil {
				return fmt.Errorf("building knowledge base: %w", err)
			}
			if !skipCheck {
				if err := k.Validate(); err != nil {
					return err
				}
			}
			if err := kb.WriteSnapshot(out, k); err != nil {
				return err
			}

			stats := k.Stats()
			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"path": out, "stats": stats})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s: %d phrases, %d keyterms in %s\n",
				out, stats.Phrases, stats.Keyterms, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Snapshot output path")
	cmd.Flags().BoolVar(&skipCheck, "skip-check", false, "Write the snapshot without checking for ambiguous phrases")
	return cmd
}

func newKBCheckCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report phrases a keyterm lookup cannot tell apart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := opts.loadKB()
			if err != nil {
				return err
			}
			err = k.Validate()
			var inconsistent *kb.ConsistencyError
			switch {
			case err == nil:
				fmt.Fprintf(cmd.OutOrStdout(), "ok: %d phrases\n", k.Len())
				return nil
			case errors.As(err, &inconsistent):
				w := cmd.OutOrStdout()
				for _, c := range inconsistent.Collisions {
					fmt.Fprintf(w, "collision: %v\n", c.Phrases)
				}
				return fmt.Errorf("%d ambiguous phrase groups", len(inconsistent.Collisions))
			default:
				return err
			}
		},
	}
}

func newKBStatsCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print knowledge base size figures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := opts.loadKB()
			if err != nil {
				return err
			}
			stats := k.Stats()
			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), stats)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "phrases:        %d\n", stats.Phrases)
			fmt.Fprintf(w, "keyterms:       %d\n", stats.Keyterms)
			fmt.Fprintf(w, "units:          %d\n", stats.Units)
			fmt.Fprintf(w, "postings:       %d\n", stats.Postings)
			fmt.Fprintf(w, "max phrase len: %d\n", stats.MaxPhraseLen)
			return nil
		},
	}
}
