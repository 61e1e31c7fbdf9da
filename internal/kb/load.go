package kb

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/config"
)

var defaultKB = sync.OnceValues(func() (*KnowledgeBase, error) {
	seed, err := ParseSeed(defaultSeed)
	if err != nil {
		return nil, err
	}
	return FromSeed(seed)
})

// Default returns the knowledge base generated from the embedded seed. It is
// built on first use and shared afterwards.
func Default() (*KnowledgeBase, error) {
	return defaultKB()
}

// Load builds a knowledge base from the configured snapshot, falling back to
// the configured seed file and then the embedded seed.
func Load(cfg config.KnowledgeBaseConfig) (*KnowledgeBase, error) {
	logger := slog.Default().With("component", "kb")
	var (
		kb     *KnowledgeBase
		source string
		err    error
	)
	switch {
	case cfg.SnapshotPath != "" && fileExists(cfg.SnapshotPath):
		source = cfg.SnapshotPath
		kb, err = ReadSnapshot(cfg.SnapshotPath)
	case cfg.SeedPath != "":
		source = cfg.SeedPath
		var seed *Seed
		seed, err = LoadSeedFile(cfg.SeedPath)
		if err == nil {
			kb, err = FromSeed(seed)
		}
	default:
		source = "embedded"
		kb, err = Default()
	}
	if err != nil {
		return nil, fmt.Errorf("loading knowledge base from %s: %w", source, err)
	}
	if cfg.ValidateOnLoad {
		if err := kb.Validate(); err != nil {
			return nil, fmt.Errorf("validating knowledge base from %s: %w", source, err)
		}
	}
	stats := kb.Stats()
	logger.Info("knowledge base loaded", "source", source, "phrases", stats.Phrases, "keyterms", stats.Keyterms)
	return kb, nil
}

// ConfigLoader adapts Load for Handle.Reload.
func ConfigLoader(cfg config.KnowledgeBaseConfig) Loader {
	return func(ctx context.Context) (*KnowledgeBase, error) {
		return Load(cfg)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
