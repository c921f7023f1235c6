package config

import (
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskmap/pkg/rollup"
	"github.com/secmon-lab/riskmap/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// Rollup holds rollup and base-derivation configuration
type Rollup struct {
	DirectOnly       bool
	MaxDepth         int
	SparklineBuckets int
	SparklinePeriod  time.Duration
	AsOf             string
}

// Flags returns CLI flags for Rollup configuration
func (r *Rollup) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:        "direct-only",
			Usage:       "Return per-location values without rolling them up",
			Category:    "Rollup",
			Sources:     cli.EnvVars("RISKMAP_DIRECT_ONLY"),
			Destination: &r.DirectOnly,
		},
		&cli.IntFlag{
			Name:        "max-depth",
			Usage:       "Depth below which locations are not rolled up (roots are depth 0)",
			Category:    "Rollup",
			Value:       rollup.DefaultMaxDepth,
			Sources:     cli.EnvVars("RISKMAP_MAX_DEPTH"),
			Destination: &r.MaxDepth,
		},
		&cli.IntFlag{
			Name:        "sparkline-buckets",
			Usage:       "Number of periods in a sparkline (0 disables sparklines and trends)",
			Category:    "Rollup",
			Value:       rollup.DefaultSparklineBuckets,
			Sources:     cli.EnvVars("RISKMAP_SPARKLINE_BUCKETS"),
			Destination: &r.SparklineBuckets,
		},
		&cli.DurationFlag{
			Name:        "sparkline-period",
			Usage:       "Length of one sparkline period",
			Category:    "Rollup",
			Value:       rollup.DefaultSparklinePeriod,
			Sources:     cli.EnvVars("RISKMAP_SPARKLINE_PERIOD"),
			Destination: &r.SparklinePeriod,
		},
		&cli.StringFlag{
			Name:        "as-of",
			Usage:       "Reference time in RFC3339 (default: now)",
			Category:    "Rollup",
			Sources:     cli.EnvVars("RISKMAP_AS_OF"),
			Destination: &r.AsOf,
		},
	}
}

// Validate validates the rollup configuration
func (r *Rollup) Validate() error {
	if r.MaxDepth < 0 {
		return goerr.New("max depth must not be negative", goerr.V("max_depth", r.MaxDepth))
	}
	if r.SparklineBuckets < 0 {
		return goerr.New("sparkline buckets must not be negative", goerr.V("buckets", r.SparklineBuckets))
	}
	if r.SparklinePeriod <= 0 {
		return goerr.New("sparkline period must be positive", goerr.V("period", r.SparklinePeriod))
	}
	if _, err := r.referenceTime(); err != nil {
		return err
	}
	return nil
}

func (r *Rollup) referenceTime() (time.Time, error) {
	if r.AsOf == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, r.AsOf)
	if err != nil {
		return time.Time{}, goerr.Wrap(err, "invalid as-of time", goerr.V("as_of", r.AsOf))
	}
	return t, nil
}

// RollupOptions returns the options of a rollup pass
func (r *Rollup) RollupOptions() []rollup.Option {
	return []rollup.Option{
		rollup.WithDirectOnly(r.DirectOnly),
		rollup.WithMaxDepth(r.MaxDepth),
	}
}

// Configure returns the options of the risk use case
func (r *Rollup) Configure() ([]usecase.RiskOption, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	opts := []usecase.RiskOption{
		usecase.WithRollupOptions(r.RollupOptions()...),
		usecase.WithBaseOptions(rollup.WithSparkline(r.SparklineBuckets, r.SparklinePeriod)),
	}

	asOf, err := r.referenceTime()
	if err != nil {
		return nil, err
	}
	if !asOf.IsZero() {
		opts = append(opts, usecase.WithClock(func() time.Time { return asOf }))
	}

	return opts, nil
}

// LogValue returns structured log value
func (r Rollup) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("direct_only", r.DirectOnly),
		slog.Int("max_depth", r.MaxDepth),
		slog.Int("sparkline_buckets", r.SparklineBuckets),
		slog.Duration("sparkline_period", r.SparklinePeriod),
		slog.String("as_of", r.AsOf),
	)
}
