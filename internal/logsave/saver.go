// Package logsave records training-run telemetry: per-step logs, metric
// snapshots, and the one-time checkpoint inventory for the current task.
package logsave

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tiendc/go-deepcopy"
	"gonum.org/v1/gonum/stat"

	"github.com/ferrolab/trainlog/internal/config"
	"github.com/ferrolab/trainlog/internal/docstore"
	"github.com/ferrolab/trainlog/internal/observe"
)

// Collections with fixed names. The metrics and checkpoints collections are
// configured per environment; these two are not.
const (
	GeneralCollection = "general"
	CustomCollection  = "custom"
)

// unknownTaskID tags log documents written without a resolvable task
// identity. Metric and checkpoint writes refuse to run in that state.
const unknownTaskID = "unknown"

// Saver appends enriched telemetry documents to the document store.
// Construct it once at startup and hand it to call sites; it is safe to
// share within a process.
//
// Public methods never fail the caller: environment problems are logged
// through a single boundary and absorbed. The one exception is
// SaveMetricsTo, where an empty collection name is a contract violation and
// is returned.
type Saver struct {
	obs   *observe.Observer
	store docstore.Store
	cfg   config.Config
	now   func() time.Time
}

// New builds a Saver over the given store and resolved configuration. It
// also ensures the unique task_id index backing checkpoint-inventory
// idempotence; if the store cannot create it, the check-then-insert path
// still works and the failure is only logged.
func New(ctx context.Context, obs *observe.Observer, store docstore.Store, cfg config.Config) *Saver {
	s := &Saver{
		obs:   obs.Named("logsave"),
		store: store,
		cfg:   cfg,
		now:   time.Now,
	}

	if err := store.EnsureUniqueIndex(ctx, cfg.CheckpointsCollection, "task_id"); err != nil {
		s.obs.Log().Warn().Err(err).Msg("could not ensure checkpoint inventory index")
	}
	return s
}

// SaveLogs appends one training-step log document to the metrics
// collection, e.g. {"epoch": 1, "loss": 0.1}. Without a task identity the
// call is a no-op. The entries map is enriched in place.
func (s *Saver) SaveLogs(ctx context.Context, entries map[string]any) {
	if s.cfg.TaskID == "" {
		s.obs.Log().Debug().Msg("no task id set, skipping log save")
		return
	}
	s.report("save logs", s.saveLogs(ctx, entries))
}

func (s *Saver) saveLogs(ctx context.Context, entries map[string]any) error {
	ctx, span := s.obs.StartSpan(ctx, "logsave.save_logs")
	defer span.End()

	s.enrich(entries)
	return s.store.InsertOne(ctx, s.cfg.MetricsCollection, entries)
}

// SaveMetrics records an evaluation summary (isEval true) or an ad-hoc
// metric snapshot (isEval false).
//
// For evaluations, each value of data is a sequence of per-item correctness
// indicators (numbers or booleans); the stored value per category is the
// percentage 100 × mean(indicators). Categories with no indicators are
// skipped. Evaluations go to the general collection, everything else to the
// custom collection. The caller's map is never mutated.
func (s *Saver) SaveMetrics(ctx context.Context, data map[string]any, isEval bool) {
	if s.cfg.TaskID == "" || s.cfg.TaskID == unknownTaskID {
		s.obs.Log().Debug().Msg("no task id set, skipping metric save")
		return
	}

	toSave := data
	collection := CustomCollection
	if isEval {
		toSave = summarizeEval(data)
		collection = GeneralCollection
	}
	s.report("save metrics", s.SaveMetricsTo(ctx, toSave, collection))
}

// SaveMetricsTo writes a metric snapshot to an explicit collection. Unlike
// the other entry points, an empty collection name is returned as an error:
// it indicates a broken caller, not a broken environment.
func (s *Saver) SaveMetricsTo(ctx context.Context, data map[string]any, collection string) error {
	if s.cfg.TaskID == "" || s.cfg.TaskID == unknownTaskID {
		return nil
	}
	if collection == "" {
		return errors.New("logsave: collection name is required")
	}

	ctx, span := s.obs.StartSpan(ctx, "logsave.save_metrics")
	defer span.End()

	var doc map[string]any
	if err := deepcopy.Copy(&doc, data); err != nil {
		return fmt.Errorf("failed to copy metrics: %w", err)
	}
	if doc == nil {
		doc = make(map[string]any, 3)
	}
	s.enrich(doc)
	return s.store.InsertOne(ctx, collection, doc)
}

// enrich stamps the fields every recorded document carries. DeleteAt is a
// retention marker consumed by an external cleanup process; it is always
// zero at write time.
func (s *Saver) enrich(doc map[string]any) {
	taskID := s.cfg.TaskID
	if taskID == "" {
		taskID = unknownTaskID
	}
	doc["task_id"] = taskID
	doc["created_at"] = s.now().Unix()
	doc["DeleteAt"] = 0
}

// report is the single logging boundary for absorbed failures. Telemetry
// must never interrupt the training run, so errors surface only here.
func (s *Saver) report(op string, err error) {
	if err != nil {
		s.obs.Log().Error().Str("op", op).Err(err).Msg("telemetry write failed")
	}
}

// summarizeEval turns sequences of correctness indicators into percentage
// scores per category, dropping categories with no indicators.
func summarizeEval(data map[string]any) map[string]any {
	scores := make(map[string]any, len(data))
	for category, raw := range data {
		vals, ok := indicatorValues(raw)
		if !ok || len(vals) == 0 {
			continue
		}
		scores[category] = 100 * stat.Mean(vals, nil)
	}
	return scores
}

// indicatorValues coerces a correctness-indicator sequence to float64s.
// Booleans count as 1 or 0.
func indicatorValues(v any) ([]float64, bool) {
	switch seq := v.(type) {
	case []float64:
		return seq, true
	case []int:
		vals := make([]float64, len(seq))
		for i, n := range seq {
			vals[i] = float64(n)
		}
		return vals, true
	case []bool:
		vals := make([]float64, len(seq))
		for i, b := range seq {
			if b {
				vals[i] = 1
			}
		}
		return vals, true
	case []any:
		vals := make([]float64, 0, len(seq))
		for _, item := range seq {
			switch n := item.(type) {
			case float64:
				vals = append(vals, n)
			case int:
				vals = append(vals, float64(n))
			case bool:
				if n {
					vals = append(vals, 1)
				} else {
					vals = append(vals, 0)
				}
			default:
				return nil, false
			}
		}
		return vals, true
	}
	return nil, false
}
