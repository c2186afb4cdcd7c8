package engine

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Project-DevX/healthmate-sub000/internal/domain"
)

// Options tunes a FeatureEngine. Zero values select the defaults.
type Options struct {
	CorrelationWindow   time.Duration
	MaxProjectionMonths float64
	Workers             int
	Rules               []RuleSet
}

// FeatureEngine runs the feature-engineering pipeline over a case file:
// extraction, per-parameter statistics and interpretation, correlation and
// pattern detection. It holds no per-run state.
type FeatureEngine struct {
	logger       *logrus.Logger
	extractor    *Extractor
	interpreter  *Interpreter
	correlations *CorrelationAnalyzer
	patterns     *PatternDetector
	workers      int
}

// NewFeatureEngine creates a feature engine over the given threshold table
func NewFeatureEngine(logger *logrus.Logger, table *ThresholdTable, opts Options) *FeatureEngine {
	workers := opts.Workers
	if workers <= 0 {
		workers = 8
	}
	return &FeatureEngine{
		logger:       logger,
		extractor:    NewExtractor(logger),
		interpreter:  NewInterpreter(table, opts.MaxProjectionMonths),
		correlations: NewCorrelationAnalyzer(opts.CorrelationWindow),
		patterns:     NewPatternDetector(opts.Rules),
		workers:      workers,
	}
}

// parameterResult is the per-parameter output of the statistics stage
type parameterResult struct {
	name           string
	stats          domain.TrendStatistics
	interpretation domain.ClinicalInterpretation
	insufficient   bool
}

// Run computes the feature set from the case file's raw lab results and
// writes it back. Data problems never fail a run; only a cancelled context
// does, in which case the stages completed so far remain in the case file.
func (e *FeatureEngine) Run(ctx context.Context, pc *domain.PatientContext) error {
	start := time.Now()

	features, extraction, err := e.Compute(ctx, pc.RawData.LabResults)
	pc.Features = features

	pc.Upsert(domain.CategoryDataQuality, "records_seen", extraction.RecordsSeen)
	pc.Upsert(domain.CategoryDataQuality, "dropped_records", extraction.DroppedRecords)
	pc.Upsert(domain.CategoryDataQuality, "dropped_fields", extraction.DroppedFields)
	pc.Upsert(domain.CategoryDataQuality, "insufficient_parameters", len(features.InsufficientData))

	if err != nil {
		pc.Upsert(domain.CategoryPipeline, "feature_engine", "aborted")
		return err
	}
	pc.Upsert(domain.CategoryPipeline, "feature_engine", "completed")

	e.logger.WithFields(logrus.Fields{
		"case_id":      pc.CaseID,
		"parameters":   len(features.TimeSeries),
		"analyzed":     len(features.Statistics),
		"correlations": len(features.Correlations),
		"detected":     countDetected(features.Patterns),
		"duration_ms":  time.Since(start).Milliseconds(),
	}).Info("Completed feature engineering")

	return nil
}

// Compute is the pure form of Run. On cancellation it returns the features
// computed before the context was done together with the context error.
func (e *FeatureEngine) Compute(ctx context.Context, labResults map[string][]domain.RawRecord) (domain.FeatureSet, ExtractionResult, error) {
	features := domain.NewFeatureSet()

	extraction := e.extractor.Extract(labResults)
	features.TimeSeries = extraction.Series
	for name, ts := range extraction.Series {
		if latest, ok := ts.Latest(); ok {
			features.LatestValues[name] = latest.Value
		}
	}
	if err := ctx.Err(); err != nil {
		return features, extraction, err
	}

	results, err := e.analyzeParameters(ctx, extraction.Series)
	for _, r := range results {
		if r.insufficient {
			features.InsufficientData = append(features.InsufficientData, r.name)
			continue
		}
		features.Statistics[r.name] = r.stats
		features.Interpretations[r.name] = r.interpretation
	}
	if err != nil {
		return features, extraction, err
	}

	features.Correlations = e.correlations.Analyze(extraction.Series)
	if err := ctx.Err(); err != nil {
		return features, extraction, err
	}

	features.Patterns = e.patterns.Detect(features.LatestValues, extraction.Series)
	return features, extraction, nil
}

// analyzeParameters computes statistics and interpretation for every series
// concurrently. Results are returned in parameter-name order.
func (e *FeatureEngine) analyzeParameters(ctx context.Context, series map[string]domain.TimeSeries) ([]parameterResult, error) {
	names := make([]string, 0, len(series))
	for name := range series {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]parameterResult, len(names))
	done := make([]bool, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			res := parameterResult{name: name}
			stats, err := ComputeTrendStatistics(series[name])
			if err != nil {
				if !errors.Is(err, domain.ErrInsufficientData) {
					return err
				}
				e.logger.WithField("parameter", name).Debug(err.Error())
				res.insufficient = true
			} else {
				res.stats = stats
				res.interpretation = e.interpreter.Interpret(name, stats)
			}
			results[i] = res
			done[i] = true
			return nil
		})
	}
	err := g.Wait()

	completed := make([]parameterResult, 0, len(names))
	for i := range results {
		if done[i] {
			completed = append(completed, results[i])
		}
	}
	return completed, err
}

func countDetected(patterns []domain.ClinicalPattern) int {
	n := 0
	for _, p := range patterns {
		if p.Detected {
			n++
		}
	}
	return n
}
