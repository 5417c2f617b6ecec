// Package clienttest provides in-memory fakes of the AWS APIs used by the
// auditor, for tests in other packages.
package clienttest

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/Nao-Mk2/aws-logs-auditor/internal/client"
)

// Regions fakes ec2.DescribeRegions.
type Regions struct {
	Names []string
	Err   error
	Delay time.Duration

	mu     sync.Mutex
	calls  int
	inputs []*ec2.DescribeRegionsInput
}

func (r *Regions) DescribeRegions(ctx context.Context, in *ec2.DescribeRegionsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeRegionsOutput, error) {
	r.mu.Lock()
	r.calls++
	r.inputs = append(r.inputs, in)
	r.mu.Unlock()
	if r.Delay > 0 {
		time.Sleep(r.Delay)
	}
	if r.Err != nil {
		return nil, r.Err
	}
	out := &ec2.DescribeRegionsOutput{}
	for _, n := range r.Names {
		out.Regions = append(out.Regions, ec2types.Region{RegionName: aws.String(n), OptInStatus: aws.String("opt-in-not-required")})
	}
	return out, nil
}

// Calls reports how many times DescribeRegions ran.
func (r *Regions) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// Inputs returns the recorded DescribeRegions inputs.
func (r *Regions) Inputs() []*ec2.DescribeRegionsInput {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*ec2.DescribeRegionsInput(nil), r.inputs...)
}

// Row builds one Insights result row from field/value pairs.
func Row(kv ...string) []cwtypes.ResultField {
	row := make([]cwtypes.ResultField, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		row = append(row, cwtypes.ResultField{Field: aws.String(kv[i]), Value: aws.String(kv[i+1])})
	}
	return row
}

// Logs fakes the CloudWatch Logs API of a single region.
type Logs struct {
	// GroupPages are returned page by page from DescribeLogGroups.
	GroupPages  [][]cwtypes.LogGroup
	DescribeErr error

	// Rows holds the Insights rows returned per log group.
	Rows map[string][][]cwtypes.ResultField
	// Status overrides the terminal status per log group (default Complete).
	Status map[string]cwtypes.QueryStatus
	// StartErr fails StartQuery for the named groups ("*" fails all).
	StartErr map[string]error
	// PendingPolls is the number of Running responses before the terminal one.
	PendingPolls int
	GetErr       error

	mu       sync.Mutex
	seq      int
	queries  map[string]string
	polls    map[string]int
	starts   []cloudwatchlogs.StartQueryInput
	stopped  []string
	describe int
}

func (l *Logs) DescribeLogGroups(ctx context.Context, in *cloudwatchlogs.DescribeLogGroupsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogGroupsOutput, error) {
	l.mu.Lock()
	l.describe++
	l.mu.Unlock()
	if l.DescribeErr != nil {
		return nil, l.DescribeErr
	}
	page := 0
	if in.NextToken != nil {
		n, err := strconv.Atoi(aws.ToString(in.NextToken))
		if err != nil {
			return nil, fmt.Errorf("bad token %q", aws.ToString(in.NextToken))
		}
		page = n
	}
	out := &cloudwatchlogs.DescribeLogGroupsOutput{}
	if page < len(l.GroupPages) {
		out.LogGroups = l.GroupPages[page]
	}
	if page+1 < len(l.GroupPages) {
		out.NextToken = aws.String(strconv.Itoa(page + 1))
	}
	return out, nil
}

func (l *Logs) StartQuery(ctx context.Context, in *cloudwatchlogs.StartQueryInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.StartQueryOutput, error) {
	group := aws.ToString(in.LogGroupName)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.starts = append(l.starts, *in)
	if err := l.StartErr[group]; err != nil {
		return nil, err
	}
	if err := l.StartErr["*"]; err != nil {
		return nil, err
	}
	if l.queries == nil {
		l.queries = make(map[string]string)
		l.polls = make(map[string]int)
	}
	l.seq++
	id := fmt.Sprintf("q-%d", l.seq)
	l.queries[id] = group
	return &cloudwatchlogs.StartQueryOutput{QueryId: aws.String(id)}, nil
}

func (l *Logs) GetQueryResults(ctx context.Context, in *cloudwatchlogs.GetQueryResultsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.GetQueryResultsOutput, error) {
	if l.GetErr != nil {
		return nil, l.GetErr
	}
	id := aws.ToString(in.QueryId)
	l.mu.Lock()
	defer l.mu.Unlock()
	group, ok := l.queries[id]
	if !ok {
		return nil, fmt.Errorf("unknown query %q", id)
	}
	l.polls[id]++
	if l.PendingPolls < 0 || l.polls[id] <= l.PendingPolls {
		return &cloudwatchlogs.GetQueryResultsOutput{Status: cwtypes.QueryStatusRunning}, nil
	}
	status := cwtypes.QueryStatusComplete
	if s, ok := l.Status[group]; ok {
		status = s
	}
	out := &cloudwatchlogs.GetQueryResultsOutput{Status: status}
	if status == cwtypes.QueryStatusComplete {
		out.Results = l.Rows[group]
	}
	return out, nil
}

func (l *Logs) StopQuery(ctx context.Context, in *cloudwatchlogs.StopQueryInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.StopQueryOutput, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopped = append(l.stopped, aws.ToString(in.QueryId))
	return &cloudwatchlogs.StopQueryOutput{Success: true}, nil
}

// Starts returns the recorded StartQuery inputs.
func (l *Logs) Starts() []cloudwatchlogs.StartQueryInput {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]cloudwatchlogs.StartQueryInput(nil), l.starts...)
}

// Stopped returns the query IDs passed to StopQuery.
func (l *Logs) Stopped() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.stopped...)
}

// DescribeCalls reports how many DescribeLogGroups pages were requested.
func (l *Logs) DescribeCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.describe
}

// Provider maps regions to fake Logs clients. Unknown regions get an empty fake.
type Provider struct {
	mu       sync.Mutex
	ByRegion map[string]*Logs
}

// NewProvider returns a Provider seeded with the given regions.
func NewProvider(byRegion map[string]*Logs) *Provider {
	if byRegion == nil {
		byRegion = make(map[string]*Logs)
	}
	return &Provider{ByRegion: byRegion}
}

func (p *Provider) Logs(region string) client.LogsAPI {
	return p.Region(region)
}

// Region returns the concrete fake for region.
func (p *Provider) Region(region string) *Logs {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.ByRegion[region]
	if !ok {
		l = &Logs{}
		p.ByRegion[region] = l
	}
	return l
}
