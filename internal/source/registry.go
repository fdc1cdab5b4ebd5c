package source

import (
	"time"

	"go.uber.org/zap"

	"github.com/macrofeed/series-crawler/internal/catalog"
	"github.com/macrofeed/series-crawler/internal/clock"
	"github.com/macrofeed/series-crawler/internal/config"
)

// BuildRegistry wires one adapter per catalog source. FRED and Treasury get
// live clients; BLS, BEA and Census fall back to static adapters until their
// clients land.
func BuildRegistry(cfg config.SourcesConfig, fetchTimeout time.Duration, clk clock.Clock, logger *zap.Logger) Registry {
	rpm := func(src catalog.Source) int {
		if v, ok := cfg.RequestsPerMinute[string(src)]; ok {
			return v
		}
		return cfg.DefaultRequestsPerMinute
	}

	return Registry{
		catalog.SourceFRED: NewFREDAdapter(
			cfg.FREDAPIKey,
			rpm(catalog.SourceFRED),
			logger.Named("fred"),
		),
		catalog.SourceTreasury: NewTreasuryAdapter(
			cfg.UserAgent,
			fetchTimeout,
			logger.Named("treasury"),
		),
		catalog.SourceBLS:    NewStaticAdapter(clk, 12, 24*time.Hour),
		catalog.SourceBEA:    NewStaticAdapter(clk, 4, 7*24*time.Hour),
		catalog.SourceCensus: NewStaticAdapter(clk, 1, 30*24*time.Hour),
	}
}
