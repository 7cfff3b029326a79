package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/yairfalse/nimbus/pkg/resource"
)

// Encryption values reported in bucket metadata.
const (
	encryptionAES256 = "AES256"
	encryptionKMS    = "AWS-KMS"
	encryptionNone   = "None"
)

// scanS3 scans S3 buckets (no pagination needed).
func (p *Plugin) scanS3(ctx context.Context) ([]resource.Resource, error) {
	output, err := p.s3Client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}

	resources := make([]resource.Resource, 0, len(output.Buckets))
	for _, bucket := range output.Buckets {
		resources = append(resources, p.convertBucket(ctx, bucket))
	}
	return resources, nil
}

// convertBucket never fails: a setting that cannot be read is reported as
// its least secure value.
func (p *Plugin) convertBucket(ctx context.Context, bucket s3types.Bucket) resource.Resource {
	name := aws.ToString(bucket.Name)
	region := p.bucketRegion(ctx, name)
	inRegion := func(o *s3.Options) { o.Region = region }

	r := newResource(name, name, region, p.accountID, resource.TypeBucket, resource.StatusRunning)
	r.CreatedAt = formatTime(bucket.CreationDate)
	r.Metadata["encryption"] = p.bucketEncryption(ctx, name, inRegion)
	r.Metadata["publicAccess"] = p.bucketPublic(ctx, name, inRegion)

	if tagging, err := p.s3Client.GetBucketTagging(ctx, &s3.GetBucketTaggingInput{Bucket: aws.String(name)}, inRegion); err == nil {
		for _, tag := range tagging.TagSet {
			r.Tags[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
		}
	}
	return r
}

func (p *Plugin) bucketRegion(ctx context.Context, name string) string {
	out, err := p.s3Client.GetBucketLocation(ctx, &s3.GetBucketLocationInput{Bucket: aws.String(name)})
	if err != nil || out.LocationConstraint == "" {
		return "us-east-1"
	}
	return string(out.LocationConstraint)
}

func (p *Plugin) bucketEncryption(ctx context.Context, name string, optFns ...func(*s3.Options)) string {
	out, err := p.s3Client.GetBucketEncryption(ctx, &s3.GetBucketEncryptionInput{Bucket: aws.String(name)}, optFns...)
	if err != nil || out.ServerSideEncryptionConfiguration == nil {
		return encryptionNone
	}
	for _, rule := range out.ServerSideEncryptionConfiguration.Rules {
		if rule.ApplyServerSideEncryptionByDefault == nil {
			continue
		}
		switch rule.ApplyServerSideEncryptionByDefault.SSEAlgorithm {
		case s3types.ServerSideEncryptionAes256:
			return encryptionAES256
		case s3types.ServerSideEncryptionAwsKms, s3types.ServerSideEncryptionAwsKmsDsse:
			return encryptionKMS
		}
	}
	return encryptionNone
}

// bucketPublic reports true unless all four public access blocks are on.
func (p *Plugin) bucketPublic(ctx context.Context, name string, optFns ...func(*s3.Options)) bool {
	out, err := p.s3Client.GetPublicAccessBlock(ctx, &s3.GetPublicAccessBlockInput{Bucket: aws.String(name)}, optFns...)
	if err != nil || out.PublicAccessBlockConfiguration == nil {
		return true
	}
	c := out.PublicAccessBlockConfiguration
	return !(aws.ToBool(c.BlockPublicAcls) && aws.ToBool(c.IgnorePublicAcls) &&
		aws.ToBool(c.BlockPublicPolicy) && aws.ToBool(c.RestrictPublicBuckets))
}
