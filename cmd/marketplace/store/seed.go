package store

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/vendorlink/marketplace/models/market"
	"github.com/vendorlink/marketplace/util"
)

// Seed is the content of a supplier seed file.
type Seed struct {
	Suppliers []market.Supplier `yaml:"suppliers"`
}

// LoadSeed reads and validates a YAML seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(util.GetAbsolutePath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}

	seen := make(map[string]bool, len(seed.Suppliers))
	for i := range seed.Suppliers {
		s := &seed.Suppliers[i]
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("seed entry %d: %w", i, err)
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("seed entry %d: duplicate supplier id %s", i, s.ID)
		}
		seen[s.ID] = true
	}
	return &seed, nil
}

// ApplySeed upserts every supplier of seed and returns how many were written.
func ApplySeed(ctx context.Context, suppliers SupplierStore, seed *Seed, log zerolog.Logger) (int, error) {
	written := 0
	for i := range seed.Suppliers {
		s := &seed.Suppliers[i]
		if err := suppliers.PutSupplier(ctx, s); err != nil {
			return written, fmt.Errorf("failed to seed supplier %s: %w", s.ID, err)
		}
		written++
		log.Debug().Str("supplier_id", s.ID).Msg("Seeded supplier")
	}

	log.Info().Int("suppliers", written).Msg("Seed applied")
	return written, nil
}
