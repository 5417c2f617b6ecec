package region

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/rs/zerolog"

	"github.com/Nao-Mk2/aws-logs-auditor/internal/client"
)

// ErrListRegions marks a failure to enumerate the account's regions.
var ErrListRegions = errors.New("list regions")

// Enumerator lists the regions enabled for the account and remembers the
// answer for the life of the process.
type Enumerator struct {
	api    client.RegionsAPI
	logger zerolog.Logger

	mu      sync.Mutex
	regions []string
	loaded  bool
}

// NewEnumerator returns an Enumerator backed by api.
func NewEnumerator(api client.RegionsAPI, logger zerolog.Logger) *Enumerator {
	return &Enumerator{api: api, logger: logger.With().Str("component", "region").Logger()}
}

// List returns enabled region names, sorted and without duplicates.
// Only a successful answer is cached; concurrent first callers share one
// DescribeRegions call.
func (e *Enumerator) List(ctx context.Context) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded {
		regions, err := e.describe(ctx)
		if err != nil {
			return nil, err
		}
		e.regions = regions
		e.loaded = true
		e.logger.Debug().Strs("regions", regions).Msg("available regions")
	}
	return append([]string(nil), e.regions...), nil
}

func (e *Enumerator) describe(ctx context.Context) ([]string, error) {
	out, err := e.api.DescribeRegions(ctx, &ec2.DescribeRegionsInput{AllRegions: aws.Bool(false)})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrListRegions, err)
	}
	seen := make(map[string]struct{}, len(out.Regions))
	regions := make([]string, 0, len(out.Regions))
	for _, r := range out.Regions {
		name := aws.ToString(r.RegionName)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		regions = append(regions, name)
	}
	sort.Strings(regions)
	return regions, nil
}
