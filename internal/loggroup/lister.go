package loggroup

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/gobwas/glob"
	"github.com/rs/zerolog"

	"github.com/Nao-Mk2/aws-logs-auditor/internal/client"
	"github.com/Nao-Mk2/aws-logs-auditor/internal/model"
)

// Lister enumerates log groups region by region.
type Lister struct {
	clients client.LogsProvider
	logger  zerolog.Logger
}

// NewLister returns a Lister using clients for per-region access.
func NewLister(clients client.LogsProvider, logger zerolog.Logger) *Lister {
	return &Lister{clients: clients, logger: logger.With().Str("component", "loggroup").Logger()}
}

// List returns every log group in region, following pagination to the end.
func (l *Lister) List(ctx context.Context, region string) ([]model.LogGroup, error) {
	l.logger.Debug().Str("region", region).Msg("describing log groups")
	p := cloudwatchlogs.NewDescribeLogGroupsPaginator(l.clients.Logs(region), &cloudwatchlogs.DescribeLogGroupsInput{})
	groups := make([]model.LogGroup, 0)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("describe log groups in %s: %w", region, err)
		}
		for _, g := range page.LogGroups {
			groups = append(groups, model.LogGroup{
				Name:            aws.ToString(g.LogGroupName),
				Region:          region,
				CreationTime:    g.CreationTime,
				RetentionInDays: g.RetentionInDays,
				StoredBytes:     aws.ToInt64(g.StoredBytes),
			})
		}
	}
	return groups, nil
}

// Discover is List for multi-region scans: a failing region is logged and
// contributes no groups.
func (l *Lister) Discover(ctx context.Context, region string) []model.LogGroup {
	groups, err := l.List(ctx, region)
	if err != nil {
		l.logger.Warn().Err(err).Str("region", region).Str("code", client.ErrorCode(err)).Msg("failed to list groups")
		return []model.LogGroup{}
	}
	return groups
}

// Patterns is a compiled set of log group name globs.
type Patterns []glob.Glob

// CompilePatterns compiles glob patterns such as "/aws/lambda/*".
// '*' matches across '/' so nested names match a single wildcard.
func CompilePatterns(patterns []string) (Patterns, error) {
	out := make(Patterns, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid group pattern %q: %w", p, err)
		}
		out = append(out, g)
	}
	return out, nil
}

// Match keeps the groups whose name matches any pattern. No patterns keeps all.
func (ps Patterns) Match(groups []model.LogGroup) []model.LogGroup {
	if len(ps) == 0 {
		return groups
	}
	kept := make([]model.LogGroup, 0, len(groups))
	for _, g := range groups {
		for _, p := range ps {
			if p.Match(g.Name) {
				kept = append(kept, g)
				break
			}
		}
	}
	return kept
}
