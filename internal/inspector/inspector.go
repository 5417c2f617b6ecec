package inspector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Nao-Mk2/aws-logs-auditor/internal/loggroup"
	"github.com/Nao-Mk2/aws-logs-auditor/internal/model"
	"github.com/Nao-Mk2/aws-logs-auditor/internal/query"
	"github.com/Nao-Mk2/aws-logs-auditor/internal/service"
	"github.com/Nao-Mk2/aws-logs-auditor/internal/util"
)

const (
	DefaultWorkers = 20

	metaRegions         = 3
	metaGroupsPerRegion = 10
	metaMaxGroups       = 50
)

// DefaultSampleRegions are scanned for service tags when none are configured.
var DefaultSampleRegions = []string{"us-east-1", "us-west-2", "eu-west-1"}

// ResourceTypes lists the resource kinds exposed by the metadata endpoint.
var ResourceTypes = []string{"log-event", "log-group", "log-stream"}

// ErrInvalidRequest wraps request fields that cannot be compiled.
var ErrInvalidRequest = errors.New("invalid request")

// RegionSource lists the regions to scan when none are requested.
type RegionSource interface {
	List(ctx context.Context) ([]string, error)
}

// GroupSource lists log groups of a region.
type GroupSource interface {
	List(ctx context.Context, region string) ([]model.LogGroup, error)
	Discover(ctx context.Context, region string) []model.LogGroup
}

// QueryRunner runs one query job.
type QueryRunner interface {
	Run(ctx context.Context, job query.Job) query.Result
}

// Options configures an Inspector.
type Options struct {
	Workers       int
	SampleRegions []string
}

// Inspector fans queries out over regions and log groups and merges the rows.
type Inspector struct {
	regions RegionSource
	groups  GroupSource
	runner  QueryRunner
	opts    Options
	logger  zerolog.Logger
}

// New creates an Inspector.
func New(regions RegionSource, groups GroupSource, runner QueryRunner, opts Options, logger zerolog.Logger) *Inspector {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if len(opts.SampleRegions) == 0 {
		opts.SampleRegions = DefaultSampleRegions
	}
	return &Inspector{
		regions: regions,
		groups:  groups,
		runner:  runner,
		opts:    opts,
		logger:  logger.With().Str("component", "inspector").Logger(),
	}
}

// Request describes one aggregation.
type Request struct {
	Start         time.Time
	End           time.Time
	LimitPerGroup int

	// Regions limits the scan; empty means every enabled region.
	Regions []string
	// LogGroups are queried as-is in every region, bypassing Services and
	// GroupPatterns.
	LogGroups     []string
	Services      []string
	GroupPatterns []string

	// Search keeps events containing the text, case-insensitively.
	Search string
	// Filter keeps events whose message satisfies the JMESPath expression.
	Filter string

	// OnUnit is called from worker goroutines as each unit finishes.
	OnUnit func(UnitResult)
}

// UnitResult summarizes one (region, log group) query.
type UnitResult struct {
	Region   string
	LogGroup string
	Service  string
	Events   int
	Err      error
}

// Report is the merged outcome of an aggregation.
type Report struct {
	Events  []model.LogEvent
	Units   []UnitResult
	Regions []string
}

// Failed counts units whose query did not complete.
func (r *Report) Failed() int {
	n := 0
	for _, u := range r.Units {
		if u.Err != nil {
			n++
		}
	}
	return n
}

type unit struct {
	region string
	group  string
}

// Aggregate runs one query per (region, log group) on a bounded pool and
// returns every event sorted by timestamp, newest first. Only a failure to
// list regions is returned as an error; scan and query failures are isolated
// to their unit.
func (in *Inspector) Aggregate(ctx context.Context, req Request) (*Report, error) {
	patterns, err := loggroup.CompilePatterns(req.GroupPatterns)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	var matcher *util.Matcher
	if req.Filter != "" {
		if matcher, err = util.CompileMatcher(req.Filter); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
	}

	regions, err := in.scope(ctx, req.Regions)
	if err != nil {
		return nil, err
	}
	in.logger.Info().Strs("regions", regions).Msg("aggregating logs")

	units := in.plan(ctx, regions, req, patterns)
	results := make([]query.Result, len(units))

	var g errgroup.Group
	g.SetLimit(in.opts.Workers)
	for i, u := range units {
		g.Go(func() error {
			job := query.Job{Region: u.region, LogGroup: u.group, Start: req.Start, End: req.End, Limit: req.LimitPerGroup}
			if err := ctx.Err(); err != nil {
				results[i] = query.Result{Job: job, Events: []model.LogEvent{}, Err: err}
			} else {
				results[i] = in.runner.Run(ctx, job)
			}
			if req.OnUnit != nil {
				req.OnUnit(toUnit(results[i]))
			}
			return nil
		})
	}
	_ = g.Wait()

	report := &Report{Events: make([]model.LogEvent, 0), Units: make([]UnitResult, 0, len(results)), Regions: regions}
	for _, r := range results {
		report.Units = append(report.Units, toUnit(r))
		report.Events = append(report.Events, r.Events...)
	}
	model.SortEvents(report.Events)
	report.Events = filterEvents(report.Events, req.Search, matcher)

	in.logger.Info().
		Int("units", len(units)).
		Int("failed", report.Failed()).
		Int("events", len(report.Events)).
		Msg("aggregation finished")
	return report, nil
}

// Regions returns the enabled regions.
func (in *Inspector) Regions(ctx context.Context) ([]string, error) {
	return in.regions.List(ctx)
}

// Groups returns every log group of region.
func (in *Inspector) Groups(ctx context.Context, region string) ([]model.LogGroup, error) {
	return in.groups.List(ctx, region)
}

// Services returns the sorted service tags of the groups in regions, or in
// the sample regions when regions is empty. A failing region is skipped.
func (in *Inspector) Services(ctx context.Context, regions []string) []string {
	if len(regions) == 0 {
		regions = in.opts.SampleRegions
	}
	perRegion := in.discover(ctx, regions)
	names := make([]string, 0)
	for _, groups := range perRegion {
		names = append(names, model.GroupNames(groups)...)
	}
	return service.Set(names)
}

// Metadata is the combined catalogue returned by the metadata endpoint.
type Metadata struct {
	Regions         []string `json:"regions"`
	Services        []string `json:"services"`
	SampleLogGroups []string `json:"sample_log_groups"`
	ResourceTypes   []string `json:"resource_types"`
}

// Metadata lists every region and samples groups and services from the first
// few of them.
func (in *Inspector) Metadata(ctx context.Context) (*Metadata, error) {
	regions, err := in.regions.List(ctx)
	if err != nil {
		return nil, err
	}
	sample := regions
	if len(sample) > metaRegions {
		sample = sample[:metaRegions]
	}
	names := make([]string, 0)
	for _, groups := range in.discover(ctx, sample) {
		if len(groups) > metaGroupsPerRegion {
			groups = groups[:metaGroupsPerRegion]
		}
		names = append(names, model.GroupNames(groups)...)
	}
	services := service.Set(names)
	if len(names) > metaMaxGroups {
		names = names[:metaMaxGroups]
	}
	return &Metadata{
		Regions:         regions,
		Services:        services,
		SampleLogGroups: names,
		ResourceTypes:   append([]string(nil), ResourceTypes...),
	}, nil
}

func (in *Inspector) scope(ctx context.Context, requested []string) ([]string, error) {
	if len(requested) > 0 {
		return requested, nil
	}
	regions, err := in.regions.List(ctx)
	if err != nil {
		in.logger.Error().Err(err).Msg("failed to list regions")
		return nil, err
	}
	return regions, nil
}

// plan expands regions into query units in region order, then group order.
func (in *Inspector) plan(ctx context.Context, regions []string, req Request, patterns loggroup.Patterns) []unit {
	var perRegion [][]string
	if len(req.LogGroups) > 0 {
		perRegion = make([][]string, len(regions))
		for i := range regions {
			perRegion[i] = req.LogGroups
		}
	} else {
		filter := service.NewFilter(req.Services)
		perRegion = make([][]string, len(regions))
		for i, groups := range in.discover(ctx, regions) {
			names := make([]string, 0, len(groups))
			for _, g := range patterns.Match(groups) {
				if filter.Allows(g.Name) {
					names = append(names, g.Name)
				}
			}
			perRegion[i] = names
		}
	}

	units := make([]unit, 0)
	for i, region := range regions {
		in.logger.Debug().Str("region", region).Int("groups", len(perRegion[i])).Msg("planned region")
		for _, g := range perRegion[i] {
			units = append(units, unit{region: region, group: g})
		}
	}
	return units
}

// discover lists groups of each region in parallel; slot i belongs to regions[i].
func (in *Inspector) discover(ctx context.Context, regions []string) [][]model.LogGroup {
	out := make([][]model.LogGroup, len(regions))
	var g errgroup.Group
	g.SetLimit(in.opts.Workers)
	for i, region := range regions {
		g.Go(func() error {
			out[i] = in.groups.Discover(ctx, region)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func toUnit(r query.Result) UnitResult {
	return UnitResult{
		Region:   r.Job.Region,
		LogGroup: r.Job.LogGroup,
		Service:  service.Classify(r.Job.LogGroup),
		Events:   len(r.Events),
		Err:      r.Err,
	}
}

func filterEvents(events []model.LogEvent, search string, matcher *util.Matcher) []model.LogEvent {
	if search == "" && matcher == nil {
		return events
	}
	needle := strings.ToLower(search)
	kept := make([]model.LogEvent, 0, len(events))
	for _, e := range events {
		if needle != "" && !containsFold(e, needle) {
			continue
		}
		if matcher != nil {
			if ok, err := matcher.Match(e.Message); err != nil || !ok {
				continue
			}
		}
		kept = append(kept, e)
	}
	return kept
}

func containsFold(e model.LogEvent, needle string) bool {
	for _, s := range []string{e.Message, e.LogGroup, e.LogStream, e.Region} {
		if strings.Contains(strings.ToLower(s), needle) {
			return true
		}
	}
	return false
}
