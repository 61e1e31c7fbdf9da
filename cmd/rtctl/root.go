package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/internal/kb"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/logger"
)

// options are the persistent flags shared by every subcommand.
type options struct {
	configPath   string
	seedPath     string
	snapshotPath string
	logLevel     string
	jsonOutput   bool
}

// newRootCommand builds the command tree. Every persistent flag can also be
// set through the environment as RTCTL_<FLAG>, e.g. RTCTL_SEED or
// RTCTL_LOG_LEVEL; an explicit flag wins.
func newRootCommand() *cobra.Command {
	opts := &options{}
	v := viper.New()
	v.SetEnvPrefix("rtctl")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "rtctl",
		Short:         "Relative time extraction and knowledge base tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return fmt.Errorf("binding flags: %w", err)
			}
			opts.configPath = v.GetString("config")
			opts.seedPath = v.GetString("seed")
			opts.snapshotPath = v.GetString("snapshot")
			opts.logLevel = v.GetString("log-level")
			opts.jsonOutput = v.GetBool("json")
			logger.Setup(opts.logLevel, "text")
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.String("config", "", "Config file (knowledgeBase section is used)")
	flags.String("seed", "", "Seed file to build the knowledge base from")
	flags.String("snapshot", "", "Compiled knowledge base snapshot")
	flags.String("log-level", "warn", "Log level (debug, info, warn, error)")
	flags.Bool("json", false, "Print JSON instead of text")

	cmd.AddCommand(
		newParseCommand(opts),
		newDatesCommand(opts),
		newKBCommand(opts),
	)
	return cmd
}

// kbConfig resolves the knowledge base source. Flags override the config
// file; a seed flag drops any configured snapshot.
func (o *options) kbConfig() (config.KnowledgeBaseConfig, error) {
	cfg := config.Default()
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return config.KnowledgeBaseConfig{}, err
		}
		cfg = loaded
	}
	kbCfg := cfg.KnowledgeBase
	if o.seedPath != "" {
		kbCfg.SeedPath = o.seedPath
		kbCfg.SnapshotPath = ""
	}
	if o.snapshotPath != "" {
		kbCfg.SnapshotPath = o.snapshotPath
	}
	return kbCfg, nil
}

func (o *options) loadKB() (*kb.KnowledgeBase, error) {
	kbCfg, err := o.kbConfig()
	if err != nil {
		return nil, err
	}
	return kb.Load(kbCfg)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}
