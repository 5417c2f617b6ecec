package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog"

	"github.com/Nao-Mk2/aws-logs-auditor/internal/client"
	"github.com/Nao-Mk2/aws-logs-auditor/internal/model"
	"github.com/Nao-Mk2/aws-logs-auditor/internal/service"
)

var (
	// ErrQueryFailed means the job ended in a terminal state other than Complete.
	ErrQueryFailed = errors.New("query did not complete")
	// ErrQueryTimeout means the job was still running when the wait expired.
	ErrQueryTimeout = errors.New("query wait exceeded")
)

const (
	DefaultPollInterval = time.Second
	DefaultMaxWait      = 5 * time.Minute
	DefaultLimit        = 50

	stopTimeout = 5 * time.Second
)

// QueryString renders the Insights query used for every log group.
func QueryString(limit int) string {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return fmt.Sprintf("fields @timestamp, @message, @logStream, @ingestionTime\n| sort @timestamp desc\n| limit %d", limit)
}

// Job is one Insights query against one log group.
type Job struct {
	Region   string
	LogGroup string
	Start    time.Time
	End      time.Time
	Limit    int
}

// Result is the outcome of a Job. Events is empty whenever Err is set.
type Result struct {
	Job     Job
	QueryID string
	Status  cwtypes.QueryStatus
	Events  []model.LogEvent
	Err     error
}

// OK reports whether the job completed.
func (r Result) OK() bool { return r.Err == nil }

// Options tunes how long the executor waits for a job.
type Options struct {
	PollInterval time.Duration
	MaxWait      time.Duration
}

// Executor runs Insights queries and waits for them to finish.
type Executor struct {
	clients client.LogsProvider
	opts    Options
	logger  zerolog.Logger
}

// NewExecutor returns an Executor. Zero options fall back to defaults.
func NewExecutor(clients client.LogsProvider, opts Options, logger zerolog.Logger) *Executor {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.MaxWait <= 0 {
		opts.MaxWait = DefaultMaxWait
	}
	return &Executor{clients: clients, opts: opts, logger: logger.With().Str("component", "query").Logger()}
}

// Run submits job, waits for a terminal state and converts the rows.
// It never returns an error to the caller: failures are logged and reported
// through Result.Err with no events.
func (e *Executor) Run(ctx context.Context, job Job) Result {
	defer newrelic.FromContext(ctx).StartSegment("cloudwatchlogs/query").End()

	res := Result{Job: job, Events: []model.LogEvent{}}
	log := e.logger.With().Str("region", job.Region).Str("log_group", job.LogGroup).Logger()
	api := e.clients.Logs(job.Region)

	out, err := api.StartQuery(ctx, &cloudwatchlogs.StartQueryInput{
		LogGroupName: aws.String(job.LogGroup),
		StartTime:    aws.Int64(job.Start.Unix()),
		EndTime:      aws.Int64(job.End.Unix()),
		QueryString:  aws.String(QueryString(job.Limit)),
	})
	if err != nil {
		return e.fail(log, res, fmt.Errorf("start query: %w", err))
	}
	res.QueryID = aws.ToString(out.QueryId)
	log.Debug().Str("query_id", res.QueryID).Msg("started query")

	waitCtx, cancel := context.WithTimeout(ctx, e.opts.MaxWait)
	defer cancel()
	final, err := e.wait(waitCtx, api, res.QueryID)
	if err != nil {
		e.stop(ctx, api, res.QueryID, log)
		return e.fail(log, res, err)
	}
	res.Status = final.Status
	if final.Status != cwtypes.QueryStatusComplete {
		return e.fail(log, res, fmt.Errorf("%w: status %s", ErrQueryFailed, final.Status))
	}
	res.Events = toEvents(final.Results, job)
	return res
}

// wait polls GetQueryResults every PollInterval until a terminal status or
// until ctx is done.
func (e *Executor) wait(ctx context.Context, api client.LogsAPI, queryID string) (*cloudwatchlogs.GetQueryResultsOutput, error) {
	ticker := time.NewTicker(e.opts.PollInterval)
	defer ticker.Stop()
	for {
		out, err := api.GetQueryResults(ctx, &cloudwatchlogs.GetQueryResultsInput{QueryId: aws.String(queryID)})
		if err != nil {
			if ctx.Err() != nil {
				return nil, waitErr(ctx, e.opts.MaxWait)
			}
			return nil, fmt.Errorf("get query results: %w", err)
		}
		if terminal(out.Status) {
			return out, nil
		}
		select {
		case <-ctx.Done():
			return nil, waitErr(ctx, e.opts.MaxWait)
		case <-ticker.C:
		}
	}
}

// stop cancels a job we gave up on. Best effort: the job may already be done.
func (e *Executor) stop(ctx context.Context, api client.LogsAPI, queryID string, log zerolog.Logger) {
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
	defer cancel()
	if _, err := api.StopQuery(stopCtx, &cloudwatchlogs.StopQueryInput{QueryId: aws.String(queryID)}); err != nil {
		log.Debug().Err(err).Str("query_id", queryID).Msg("stop query")
	}
}

func (e *Executor) fail(log zerolog.Logger, res Result, err error) Result {
	log.Warn().Err(err).Str("code", client.ErrorCode(err)).Msg("query failed")
	res.Err = err
	res.Events = []model.LogEvent{}
	return res
}

func waitErr(ctx context.Context, maxWait time.Duration) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrQueryTimeout, maxWait)
	}
	return fmt.Errorf("wait for query: %w", ctx.Err())
}

func terminal(s cwtypes.QueryStatus) bool {
	switch s {
	case cwtypes.QueryStatusComplete, cwtypes.QueryStatusFailed, cwtypes.QueryStatusCancelled, cwtypes.QueryStatusTimeout:
		return true
	}
	return false
}

func toEvents(rows [][]cwtypes.ResultField, job Job) []model.LogEvent {
	tag := service.Classify(job.LogGroup)
	events := make([]model.LogEvent, 0, len(rows))
	for _, row := range rows {
		fields := make(map[string]string, len(row))
		for _, f := range row {
			fields[aws.ToString(f.Field)] = aws.ToString(f.Value)
		}
		events = append(events, model.LogEvent{
			Timestamp:     fields["@timestamp"],
			Message:       fields["@message"],
			LogGroup:      job.LogGroup,
			LogStream:     fields["@logStream"],
			IngestionTime: fields["@ingestionTime"],
			Region:        job.Region,
			Service:       tag,
		})
	}
	return events
}
