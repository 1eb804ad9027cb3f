package experiment

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"toolAdvisor/business/scoring"
	"toolAdvisor/domain"
	"toolAdvisor/pkg/logger"
)

const buckets = 100

// Repository reads and writes persisted variant splits.
type Repository interface {
	ListVariants(ctx context.Context, experiment string) ([]domain.ExperimentVariant, error)
	UpsertVariant(ctx context.Context, v domain.ExperimentVariant) error
}

type VariantConfig struct {
	Name       string           `yaml:"name"`
	TrafficPct int              `yaml:"traffic_pct"`
	Weights    *scoring.Weights `yaml:"weights"`
}

type Config struct {
	Enabled    bool            `yaml:"enabled"`
	Experiment string          `yaml:"experiment"`
	Variants   []VariantConfig `yaml:"variants"`
	// RefreshInterval bounds how stale repository-backed splits may be.
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// Assignment is the variant a user falls into. Weights is nil when the
// variant keeps the engine's base weights.
type Assignment struct {
	Variant string
	Weights *scoring.Weights
}

type Assigner struct {
	cfg  Config
	repo Repository
	now  func() time.Time

	mu       sync.RWMutex
	variants []VariantConfig
	loadedAt time.Time
}

func NewAssigner(cfg Config, repo Repository) (*Assigner, error) {
	if cfg.Experiment == "" {
		cfg.Experiment = "default"
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 30 * time.Second
	}
	if err := validateVariants(cfg.Variants); err != nil {
		return nil, err
	}
	return &Assigner{
		cfg:      cfg,
		repo:     repo,
		now:      time.Now,
		variants: cfg.Variants,
	}, nil
}

func (a *Assigner) Enabled() bool { return a.cfg.Enabled }

func (a *Assigner) Experiment() string { return a.cfg.Experiment }

func validateVariants(vs []VariantConfig) error {
	total := 0
	seen := make(map[string]bool, len(vs))
	for _, v := range vs {
		if v.Name == "" {
			return domain.NewConfigurationError("experiment variant name is required")
		}
		if seen[v.Name] {
			return domain.NewConfigurationError("experiment variant %q defined twice", v.Name)
		}
		seen[v.Name] = true
		if v.TrafficPct < 0 || v.TrafficPct > buckets {
			return domain.NewConfigurationError("variant %q traffic must be within 0..100, got %d", v.Name, v.TrafficPct)
		}
		total += v.TrafficPct
		if v.Weights != nil {
			if err := v.Weights.Validate(); err != nil {
				return fmt.Errorf("variant %q: %w", v.Name, err)
			}
		}
	}
	if total > buckets {
		return domain.NewConfigurationError("experiment traffic adds up to %d%%", total)
	}
	return nil
}

// bucket hashes (experiment, user) into [0, 100).
func bucket(experiment, userID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(experiment + ":" + userID))
	return int(h.Sum32() % buckets)
}

// GetVariant returns the user's variant, or false when experiments are off or
// the user falls outside every split.
func (a *Assigner) GetVariant(ctx context.Context, userID string) (Assignment, bool) {
	if !a.cfg.Enabled || userID == "" {
		return Assignment{}, false
	}
	variants := a.current(ctx)

	b := bucket(a.cfg.Experiment, userID)
	upper := 0
	for _, v := range variants {
		upper += v.TrafficPct
		if b < upper {
			return Assignment{Variant: v.Name, Weights: v.Weights}, true
		}
	}
	return Assignment{}, false
}

// current returns the repository splits when available, falling back to the
// configured ones.
func (a *Assigner) current(ctx context.Context) []VariantConfig {
	a.mu.RLock()
	variants, fresh := a.variants, a.repo == nil || a.now().Sub(a.loadedAt) < a.cfg.RefreshInterval
	a.mu.RUnlock()
	if fresh {
		return variants
	}
	if err := a.Reload(ctx); err != nil {
		logger.Warn("experiment_reload_failed", "experiment", a.cfg.Experiment, "error", err)
		a.mu.Lock()
		a.loadedAt = a.now()
		a.mu.Unlock()
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.variants
}

// Reload replaces the splits with the repository's. An empty repository keeps
// the configured defaults.
func (a *Assigner) Reload(ctx context.Context) error {
	if a.repo == nil {
		return nil
	}
	rows, err := a.repo.ListVariants(ctx, a.cfg.Experiment)
	if err != nil {
		return fmt.Errorf("list experiment variants: %w", err)
	}

	variants := a.cfg.Variants
	if len(rows) > 0 {
		variants = fromRows(rows)
		if err := validateVariants(variants); err != nil {
			return err
		}
	}

	a.mu.Lock()
	a.variants = variants
	a.loadedAt = a.now()
	a.mu.Unlock()
	return nil
}

func fromRows(rows []domain.ExperimentVariant) []VariantConfig {
	sorted := append([]domain.ExperimentVariant(nil), rows...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	out := make([]VariantConfig, 0, len(sorted))
	for _, r := range sorted {
		v := VariantConfig{Name: r.Name, TrafficPct: r.TrafficPct}
		if r.HasWeights() {
			v.Weights = &scoring.Weights{
				Collaborative: r.WeightCollaborative,
				ContentBased:  r.WeightContentBased,
				Contextual:    r.WeightContextual,
			}
		}
		out = append(out, v)
	}
	return out
}

func toRow(experiment string, v VariantConfig) domain.ExperimentVariant {
	row := domain.ExperimentVariant{
		Experiment: experiment,
		Name:       v.Name,
		TrafficPct: v.TrafficPct,
	}
	if v.Weights != nil {
		row.WeightCollaborative = v.Weights.Collaborative
		row.WeightContentBased = v.Weights.ContentBased
		row.WeightContextual = v.Weights.Contextual
	}
	return row
}

// Variants returns the splits currently in force.
func (a *Assigner) Variants(ctx context.Context) []domain.ExperimentVariant {
	variants := a.current(ctx)
	out := make([]domain.ExperimentVariant, 0, len(variants))
	for _, v := range variants {
		out = append(out, toRow(a.cfg.Experiment, v))
	}
	return out
}

// SetVariants validates and stores a full set of splits.
func (a *Assigner) SetVariants(ctx context.Context, rows []domain.ExperimentVariant) error {
	variants := fromRows(rows)
	if err := validateVariants(variants); err != nil {
		return err
	}
	if a.repo != nil {
		for _, v := range variants {
			if err := a.repo.UpsertVariant(ctx, toRow(a.cfg.Experiment, v)); err != nil {
				return fmt.Errorf("upsert variant %s: %w", v.Name, err)
			}
		}
	}

	a.mu.Lock()
	a.variants = variants
	a.loadedAt = a.now()
	a.mu.Unlock()

	logger.Info("experiment_variants_updated", "experiment", a.cfg.Experiment, "variants", len(variants))
	return nil
}
