// Package aws implements the AWS inventory source.
//
// Provider attributes are mapped onto the metadata keys read by the
// compliance engine (publicAccess, encryption, publicIp, openPorts,
// storageEncrypted, scheme, sslPolicy, rbacEnabled). Costs are not
// discovered; every resource reports zero monthly cost.
package aws

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/rs/zerolog/log"

	"github.com/yairfalse/nimbus/pkg/resource"
)

// Name is the plugin identifier.
const Name = "aws"

// Config holds AWS plugin configuration.
type Config struct {
	Regions []string
	Profile string
}

// Plugin implements the AWS scanner.
type Plugin struct {
	accountID string
	regions   []*regionScanner

	// S3 is global; bucket calls are routed to the bucket's region.
	s3Client S3API
}

// regionScanner holds the clients for one region (interfaces for testability).
type regionScanner struct {
	region    string
	accountID string

	ec2Client    EC2API
	rdsClient    RDSAPI
	elbClient    ELBAPI
	eksClient    EKSAPI
	lambdaClient LambdaAPI
}

// New creates a new AWS plugin using the default credential chain.
func New(ctx context.Context, cfg Config) (*Plugin, error) {
	if len(cfg.Regions) == 0 {
		return nil, errors.New("at least one region is required")
	}

	var p Plugin
	for i, region := range cfg.Regions {
		opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
		if cfg.Profile != "" {
			opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
		}
		awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("load aws config for %s: %w", region, err)
		}

		if i == 0 {
			identity, err := sts.NewFromConfig(awsCfg).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
			if err != nil {
				return nil, fmt.Errorf("get account id: %w", err)
			}
			p.accountID = aws.ToString(identity.Account)
			p.s3Client = s3.NewFromConfig(awsCfg)
		}

		p.regions = append(p.regions, &regionScanner{
			region:       region,
			accountID:    p.accountID,
			ec2Client:    ec2.NewFromConfig(awsCfg),
			rdsClient:    rds.NewFromConfig(awsCfg),
			elbClient:    elasticloadbalancingv2.NewFromConfig(awsCfg),
			eksClient:    eks.NewFromConfig(awsCfg),
			lambdaClient: lambda.NewFromConfig(awsCfg),
		})
	}
	return &p, nil
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return Name
}

type scanner struct {
	name   string
	region string
	fn     func(context.Context) ([]resource.Resource, error)
}

func (p *Plugin) scanners() []scanner {
	var out []scanner
	for _, rs := range p.regions {
		out = append(out,
			scanner{"ec2", rs.region, rs.scanEC2},
			scanner{"vpc", rs.region, rs.scanVPC},
			scanner{"rds", rs.region, rs.scanRDS},
			scanner{"elb", rs.region, rs.scanELB},
			scanner{"eks", rs.region, rs.scanEKS},
			scanner{"lambda", rs.region, rs.scanLambda},
		)
	}
	if p.s3Client != nil {
		out = append(out, scanner{"s3", "global", p.scanS3})
	}
	return out
}

// Scan runs every scanner concurrently. Failed scanners are logged and
// skipped; an error is returned only when all of them fail. Results keep
// scanner order.
func (p *Plugin) Scan(ctx context.Context) ([]resource.Resource, error) {
	scanners := p.scanners()
	results := make([][]resource.Resource, len(scanners))
	errs := make([]error, len(scanners))

	var wg sync.WaitGroup
	for i, s := range scanners {
		wg.Add(1)
		go func(i int, s scanner) {
			defer wg.Done()
			result, err := s.fn(ctx)
			if err != nil {
				log.Warn().Err(err).Str("scanner", s.name).Str("region", s.region).Msg("scan failed")
				errs[i] = fmt.Errorf("%s/%s: %w", s.region, s.name, err)
				return
			}
			results[i] = result
			log.Debug().Str("scanner", s.name).Str("region", s.region).Int("count", len(result)).Msg("scan complete")
		}(i, s)
	}
	wg.Wait()

	var (
		resources []resource.Resource
		failed    int
	)
	for i := range scanners {
		if errs[i] != nil {
			failed++
			continue
		}
		resources = append(resources, results[i]...)
	}
	if len(scanners) > 0 && failed == len(scanners) {
		return nil, errors.Join(errs...)
	}
	return resources, nil
}

// helper to create resource with common fields
func newResource(id, name, region, account string, typ resource.Type, status resource.Status) resource.Resource {
	if name == "" {
		name = id
	}
	return resource.Resource{
		ID:             id,
		Name:           name,
		Provider:       resource.ProviderAWS,
		AccountID:      account,
		Type:           typ,
		Region:         region,
		Tags:           make(map[string]string),
		Status:         status,
		SecurityIssues: []string{},
		Metadata:       make(map[string]any),
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
