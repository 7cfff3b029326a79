package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// mockEC2Client implements EC2API for testing.
type mockEC2Client struct {
	describeInstancesFunc      func(ctx context.Context, params *ec2.DescribeInstancesInput) (*ec2.DescribeInstancesOutput, error)
	describeVpcsFunc           func(ctx context.Context, params *ec2.DescribeVpcsInput) (*ec2.DescribeVpcsOutput, error)
	describeSecurityGroupsFunc func(ctx context.Context, params *ec2.DescribeSecurityGroupsInput) (*ec2.DescribeSecurityGroupsOutput, error)
}

func (m *mockEC2Client) DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	if m.describeInstancesFunc != nil {
		return m.describeInstancesFunc(ctx, params)
	}
	return &ec2.DescribeInstancesOutput{}, nil
}

func (m *mockEC2Client) DescribeVpcs(ctx context.Context, params *ec2.DescribeVpcsInput, _ ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error) {
	if m.describeVpcsFunc != nil {
		return m.describeVpcsFunc(ctx, params)
	}
	return &ec2.DescribeVpcsOutput{}, nil
}

func (m *mockEC2Client) DescribeSecurityGroups(ctx context.Context, params *ec2.DescribeSecurityGroupsInput, _ ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error) {
	if m.describeSecurityGroupsFunc != nil {
		return m.describeSecurityGroupsFunc(ctx, params)
	}
	return &ec2.DescribeSecurityGroupsOutput{}, nil
}

type mockRDSClient struct {
	describeDBInstancesFunc func(ctx context.Context, params *rds.DescribeDBInstancesInput) (*rds.DescribeDBInstancesOutput, error)
}

func (m *mockRDSClient) DescribeDBInstances(ctx context.Context, params *rds.DescribeDBInstancesInput, _ ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error) {
	if m.describeDBInstancesFunc != nil {
		return m.describeDBInstancesFunc(ctx, params)
	}
	return &rds.DescribeDBInstancesOutput{}, nil
}

type mockELBClient struct {
	describeLoadBalancersFunc func(ctx context.Context, params *elasticloadbalancingv2.DescribeLoadBalancersInput) (*elasticloadbalancingv2.DescribeLoadBalancersOutput, error)
	describeListenersFunc     func(ctx context.Context, params *elasticloadbalancingv2.DescribeListenersInput) (*elasticloadbalancingv2.DescribeListenersOutput, error)
	describeTagsFunc          func(ctx context.Context, params *elasticloadbalancingv2.DescribeTagsInput) (*elasticloadbalancingv2.DescribeTagsOutput, error)
}

func (m *mockELBClient) DescribeLoadBalancers(ctx context.Context, params *elasticloadbalancingv2.DescribeLoadBalancersInput, _ ...func(*elasticloadbalancingv2.Options)) (*elasticloadbalancingv2.DescribeLoadBalancersOutput, error) {
	if m.describeLoadBalancersFunc != nil {
		return m.describeLoadBalancersFunc(ctx, params)
	}
	return &elasticloadbalancingv2.DescribeLoadBalancersOutput{}, nil
}

func (m *mockELBClient) DescribeListeners(ctx context.Context, params *elasticloadbalancingv2.DescribeListenersInput, _ ...func(*elasticloadbalancingv2.Options)) (*elasticloadbalancingv2.DescribeListenersOutput, error) {
	if m.describeListenersFunc != nil {
		return m.describeListenersFunc(ctx, params)
	}
	return &elasticloadbalancingv2.DescribeListenersOutput{}, nil
}

func (m *mockELBClient) DescribeTags(ctx context.Context, params *elasticloadbalancingv2.DescribeTagsInput, _ ...func(*elasticloadbalancingv2.Options)) (*elasticloadbalancingv2.DescribeTagsOutput, error) {
	if m.describeTagsFunc != nil {
		return m.describeTagsFunc(ctx, params)
	}
	return &elasticloadbalancingv2.DescribeTagsOutput{}, nil
}

type mockEKSClient struct {
	listClustersFunc    func(ctx context.Context, params *eks.ListClustersInput) (*eks.ListClustersOutput, error)
	describeClusterFunc func(ctx context.Context, params *eks.DescribeClusterInput) (*eks.DescribeClusterOutput, error)
}

func (m *mockEKSClient) ListClusters(ctx context.Context, params *eks.ListClustersInput, _ ...func(*eks.Options)) (*eks.ListClustersOutput, error) {
	if m.listClustersFunc != nil {
		return m.listClustersFunc(ctx, params)
	}
	return &eks.ListClustersOutput{}, nil
}

func (m *mockEKSClient) DescribeCluster(ctx context.Context, params *eks.DescribeClusterInput, _ ...func(*eks.Options)) (*eks.DescribeClusterOutput, error) {
	if m.describeClusterFunc != nil {
		return m.describeClusterFunc(ctx, params)
	}
	return &eks.DescribeClusterOutput{}, nil
}

type mockLambdaClient struct {
	listFunctionsFunc func(ctx context.Context, params *lambda.ListFunctionsInput) (*lambda.ListFunctionsOutput, error)
	listTagsFunc      func(ctx context.Context, params *lambda.ListTagsInput) (*lambda.ListTagsOutput, error)
}

func (m *mockLambdaClient) ListFunctions(ctx context.Context, params *lambda.ListFunctionsInput, _ ...func(*lambda.Options)) (*lambda.ListFunctionsOutput, error) {
	if m.listFunctionsFunc != nil {
		return m.listFunctionsFunc(ctx, params)
	}
	return &lambda.ListFunctionsOutput{}, nil
}

func (m *mockLambdaClient) ListTags(ctx context.Context, params *lambda.ListTagsInput, _ ...func(*lambda.Options)) (*lambda.ListTagsOutput, error) {
	if m.listTagsFunc != nil {
		return m.listTagsFunc(ctx, params)
	}
	return &lambda.ListTagsOutput{}, nil
}

// mockS3Client records the region override applied to per-bucket calls.
type mockS3Client struct {
	buckets    *s3.ListBucketsOutput
	listErr    error
	locations  map[string]string
	encryption map[string]*s3.GetBucketEncryptionOutput
	blocks     map[string]*s3.GetPublicAccessBlockOutput
	tags       map[string]*s3.GetBucketTaggingOutput
	regions    []string
}

func (m *mockS3Client) ListBuckets(_ context.Context, _ *s3.ListBucketsInput, _ ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	if m.buckets == nil {
		return &s3.ListBucketsOutput{}, nil
	}
	return m.buckets, nil
}

func (m *mockS3Client) GetBucketLocation(_ context.Context, params *s3.GetBucketLocationInput, _ ...func(*s3.Options)) (*s3.GetBucketLocationOutput, error) {
	out := &s3.GetBucketLocationOutput{}
	if loc, ok := m.locations[*params.Bucket]; ok {
		out.LocationConstraint = s3LocationConstraint(loc)
	}
	return out, nil
}

func (m *mockS3Client) GetBucketEncryption(_ context.Context, params *s3.GetBucketEncryptionInput, optFns ...func(*s3.Options)) (*s3.GetBucketEncryptionOutput, error) {
	m.recordRegion(optFns)
	if out, ok := m.encryption[*params.Bucket]; ok {
		return out, nil
	}
	return nil, errNotFound
}

func (m *mockS3Client) GetPublicAccessBlock(_ context.Context, params *s3.GetPublicAccessBlockInput, optFns ...func(*s3.Options)) (*s3.GetPublicAccessBlockOutput, error) {
	m.recordRegion(optFns)
	if out, ok := m.blocks[*params.Bucket]; ok {
		return out, nil
	}
	return nil, errNotFound
}

func (m *mockS3Client) GetBucketTagging(_ context.Context, params *s3.GetBucketTaggingInput, optFns ...func(*s3.Options)) (*s3.GetBucketTaggingOutput, error) {
	m.recordRegion(optFns)
	if out, ok := m.tags[*params.Bucket]; ok {
		return out, nil
	}
	return nil, errNotFound
}

func (m *mockS3Client) recordRegion(optFns []func(*s3.Options)) {
	var o s3.Options
	for _, fn := range optFns {
		fn(&o)
	}
	m.regions = append(m.regions, o.Region)
}

type failingRDS struct{ err error }

func (f *failingRDS) DescribeDBInstances(context.Context, *rds.DescribeDBInstancesInput, ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error) {
	return nil, f.err
}

type failingELB struct {
	mockELBClient
	err error
}

func (f *failingELB) DescribeLoadBalancers(context.Context, *elasticloadbalancingv2.DescribeLoadBalancersInput, ...func(*elasticloadbalancingv2.Options)) (*elasticloadbalancingv2.DescribeLoadBalancersOutput, error) {
	return nil, f.err
}

type failingEKS struct {
	mockEKSClient
	err error
}

func (f *failingEKS) ListClusters(context.Context, *eks.ListClustersInput, ...func(*eks.Options)) (*eks.ListClustersOutput, error) {
	return nil, f.err
}

type failingLambda struct {
	mockLambdaClient
	err error
}

func (f *failingLambda) ListFunctions(context.Context, *lambda.ListFunctionsInput, ...func(*lambda.Options)) (*lambda.ListFunctionsOutput, error) {
	return nil, f.err
}
