package aws

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	ekstypes "github.com/aws/aws-sdk-go-v2/service/eks/types"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbtypes "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"

	"github.com/yairfalse/nimbus/pkg/resource"
)

// adminPorts are reported in openPorts whenever a world-open rule covers them.
var adminPorts = []int{22, 3389}

// scanEC2 scans EC2 instances and resolves their world-open ports.
func (rs *regionScanner) scanEC2(ctx context.Context) ([]resource.Resource, error) {
	var instances []ec2types.Instance
	var nextToken *string

	for {
		output, err := rs.ec2Client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{NextToken: nextToken})
		if err != nil {
			return nil, fmt.Errorf("describe instances: %w", err)
		}

		for _, reservation := range output.Reservations {
			instances = append(instances, reservation.Instances...)
		}

		if output.NextToken == nil {
			break
		}
		nextToken = output.NextToken
	}

	ports, err := rs.openPorts(ctx, instances)
	if err != nil {
		return nil, err
	}

	resources := make([]resource.Resource, 0, len(instances))
	for _, instance := range instances {
		resources = append(resources, rs.convertEC2Instance(instance, ports))
	}
	return resources, nil
}

// openPorts maps security group ids to the ports they open to 0.0.0.0/0 or ::/0.
func (rs *regionScanner) openPorts(ctx context.Context, instances []ec2types.Instance) (map[string][]int, error) {
	var ids []string
	for _, instance := range instances {
		for _, g := range instance.SecurityGroups {
			if id := aws.ToString(g.GroupId); id != "" && !slices.Contains(ids, id) {
				ids = append(ids, id)
			}
		}
	}
	ports := make(map[string][]int, len(ids))
	if len(ids) == 0 {
		return ports, nil
	}

	var nextToken *string
	for {
		output, err := rs.ec2Client.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{GroupIds: ids, NextToken: nextToken})
		if err != nil {
			return nil, fmt.Errorf("describe security groups: %w", err)
		}

		for _, sg := range output.SecurityGroups {
			ports[aws.ToString(sg.GroupId)] = worldOpenPorts(sg.IpPermissions)
		}

		if output.NextToken == nil {
			break
		}
		nextToken = output.NextToken
	}
	return ports, nil
}

func worldOpenPorts(perms []ec2types.IpPermission) []int {
	var ports []int
	add := func(p int) {
		if !slices.Contains(ports, p) {
			ports = append(ports, p)
		}
	}

	for _, perm := range perms {
		if !openToWorld(perm) {
			continue
		}
		switch aws.ToString(perm.IpProtocol) {
		case "-1":
			for _, p := range adminPorts {
				add(p)
			}
			continue
		case "tcp", "udp", "6", "17":
		default:
			continue
		}
		from, to := int(aws.ToInt32(perm.FromPort)), int(aws.ToInt32(perm.ToPort))
		add(from)
		for _, p := range adminPorts {
			if p > from && p <= to {
				add(p)
			}
		}
	}
	slices.Sort(ports)
	return ports
}

func openToWorld(perm ec2types.IpPermission) bool {
	for _, r := range perm.IpRanges {
		if aws.ToString(r.CidrIp) == "0.0.0.0/0" {
			return true
		}
	}
	for _, r := range perm.Ipv6Ranges {
		if aws.ToString(r.CidrIpv6) == "::/0" {
			return true
		}
	}
	return false
}

func (rs *regionScanner) convertEC2Instance(instance ec2types.Instance, sgPorts map[string][]int) resource.Resource {
	status := resource.StatusUnknown
	if instance.State != nil {
		status = instanceStatus(instance.State.Name)
	}

	r := newResource(aws.ToString(instance.InstanceId), extractNameTag(instance.Tags), rs.region, rs.accountID, resource.TypeCompute, status)
	for _, tag := range instance.Tags {
		r.Tags[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
	}
	r.CreatedAt = formatTime(instance.LaunchTime)

	r.Metadata["instanceType"] = string(instance.InstanceType)
	r.Metadata["imageId"] = aws.ToString(instance.ImageId)
	if instance.Placement != nil {
		r.Metadata["availabilityZone"] = aws.ToString(instance.Placement.AvailabilityZone)
	}
	if instance.PublicIpAddress != nil {
		r.Metadata["publicIp"] = aws.ToString(instance.PublicIpAddress)
	} else {
		r.Metadata["publicIp"] = nil
	}

	var ports []int
	for _, g := range instance.SecurityGroups {
		for _, p := range sgPorts[aws.ToString(g.GroupId)] {
			if !slices.Contains(ports, p) {
				ports = append(ports, p)
			}
		}
	}
	slices.Sort(ports)
	if ports == nil {
		ports = []int{}
	}
	r.Metadata["openPorts"] = ports
	return r
}

func instanceStatus(state ec2types.InstanceStateName) resource.Status {
	switch state {
	case ec2types.InstanceStateNameRunning, ec2types.InstanceStateNamePending:
		return resource.StatusRunning
	case ec2types.InstanceStateNameStopped, ec2types.InstanceStateNameStopping:
		return resource.StatusStopped
	case ec2types.InstanceStateNameTerminated, ec2types.InstanceStateNameShuttingDown:
		return resource.StatusTerminated
	default:
		return resource.StatusUnknown
	}
}

// scanVPC scans VPCs.
func (rs *regionScanner) scanVPC(ctx context.Context) ([]resource.Resource, error) {
	var resources []resource.Resource
	var nextToken *string

	for {
		output, err := rs.ec2Client.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{NextToken: nextToken})
		if err != nil {
			return nil, fmt.Errorf("describe vpcs: %w", err)
		}

		for _, vpc := range output.Vpcs {
			resources = append(resources, rs.convertVPC(vpc))
		}

		if output.NextToken == nil {
			break
		}
		nextToken = output.NextToken
	}

	return resources, nil
}

func (rs *regionScanner) convertVPC(vpc ec2types.Vpc) resource.Resource {
	status := resource.StatusUnknown
	if vpc.State == ec2types.VpcStateAvailable {
		status = resource.StatusRunning
	}
	r := newResource(aws.ToString(vpc.VpcId), extractNameTag(vpc.Tags), rs.region, rs.accountID, resource.TypeVPC, status)
	for _, tag := range vpc.Tags {
		r.Tags[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
	}
	r.Metadata["cidr"] = aws.ToString(vpc.CidrBlock)
	r.Metadata["isDefault"] = aws.ToBool(vpc.IsDefault)
	return r
}

// scanRDS scans RDS instances.
func (rs *regionScanner) scanRDS(ctx context.Context) ([]resource.Resource, error) {
	var resources []resource.Resource
	var marker *string

	for {
		output, err := rs.rdsClient.DescribeDBInstances(ctx, &rds.DescribeDBInstancesInput{Marker: marker})
		if err != nil {
			return nil, fmt.Errorf("describe db instances: %w", err)
		}

		for _, instance := range output.DBInstances {
			resources = append(resources, rs.convertRDSInstance(instance))
		}

		if output.Marker == nil {
			break
		}
		marker = output.Marker
	}

	return resources, nil
}

func (rs *regionScanner) convertRDSInstance(instance rdstypes.DBInstance) resource.Resource {
	id := aws.ToString(instance.DBInstanceIdentifier)
	r := newResource(id, id, rs.region, rs.accountID, resource.TypeDatabase, dbStatus(aws.ToString(instance.DBInstanceStatus)))
	for _, tag := range instance.TagList {
		r.Tags[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
	}
	r.CreatedAt = formatTime(instance.InstanceCreateTime)

	r.Metadata["engine"] = strings.TrimSpace(aws.ToString(instance.Engine) + " " + aws.ToString(instance.EngineVersion))
	r.Metadata["instanceClass"] = aws.ToString(instance.DBInstanceClass)
	r.Metadata["storage"] = fmt.Sprintf("%dGB", aws.ToInt32(instance.AllocatedStorage))
	r.Metadata["storageEncrypted"] = aws.ToBool(instance.StorageEncrypted)
	r.Metadata["publiclyAccessible"] = aws.ToBool(instance.PubliclyAccessible)
	r.Metadata["multiAz"] = aws.ToBool(instance.MultiAZ)
	return r
}

func dbStatus(s string) resource.Status {
	switch s {
	case "available", "backing-up", "modifying", "creating", "rebooting", "upgrading", "maintenance":
		return resource.StatusRunning
	case "stopped", "stopping", "starting":
		return resource.StatusStopped
	case "deleting", "failed":
		return resource.StatusTerminated
	default:
		return resource.StatusUnknown
	}
}

// scanELB scans application and network load balancers.
func (rs *regionScanner) scanELB(ctx context.Context) ([]resource.Resource, error) {
	var resources []resource.Resource
	var marker *string

	for {
		output, err := rs.elbClient.DescribeLoadBalancers(ctx, &elasticloadbalancingv2.DescribeLoadBalancersInput{Marker: marker})
		if err != nil {
			return nil, fmt.Errorf("describe load balancers: %w", err)
		}

		for _, lb := range output.LoadBalancers {
			r := rs.convertELB(lb)
			if err := rs.describeELB(ctx, lb, &r); err != nil {
				return nil, err
			}
			resources = append(resources, r)
		}

		if output.NextMarker == nil {
			break
		}
		marker = output.NextMarker
	}

	return resources, nil
}

func (rs *regionScanner) convertELB(lb elbtypes.LoadBalancer) resource.Resource {
	status := resource.StatusUnknown
	if lb.State != nil && lb.State.Code == elbtypes.LoadBalancerStateEnumActive {
		status = resource.StatusRunning
	}
	name := aws.ToString(lb.LoadBalancerName)
	r := newResource(name, name, rs.region, rs.accountID, resource.TypeLoadBalancer, status)
	r.CreatedAt = formatTime(lb.CreatedTime)
	r.Metadata["arn"] = aws.ToString(lb.LoadBalancerArn)
	r.Metadata["scheme"] = string(lb.Scheme)
	r.Metadata["type"] = string(lb.Type)
	r.Metadata["dnsName"] = aws.ToString(lb.DNSName)
	return r
}

// describeELB adds listener SSL policy and tags.
func (rs *regionScanner) describeELB(ctx context.Context, lb elbtypes.LoadBalancer, r *resource.Resource) error {
	listeners, err := rs.elbClient.DescribeListeners(ctx, &elasticloadbalancingv2.DescribeListenersInput{LoadBalancerArn: lb.LoadBalancerArn})
	if err != nil {
		return fmt.Errorf("describe listeners %s: %w", r.ID, err)
	}
	for _, l := range listeners.Listeners {
		if policy := aws.ToString(l.SslPolicy); policy != "" {
			r.Metadata["sslPolicy"] = policy
			break
		}
	}

	tags, err := rs.elbClient.DescribeTags(ctx, &elasticloadbalancingv2.DescribeTagsInput{ResourceArns: []string{aws.ToString(lb.LoadBalancerArn)}})
	if err != nil {
		return fmt.Errorf("describe tags %s: %w", r.ID, err)
	}
	for _, desc := range tags.TagDescriptions {
		for _, tag := range desc.Tags {
			r.Tags[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
		}
	}
	return nil
}

// scanEKS scans EKS clusters. Clusters that fail to describe are skipped.
func (rs *regionScanner) scanEKS(ctx context.Context) ([]resource.Resource, error) {
	var resources []resource.Resource
	var nextToken *string

	for {
		listOutput, err := rs.eksClient.ListClusters(ctx, &eks.ListClustersInput{NextToken: nextToken})
		if err != nil {
			return nil, fmt.Errorf("list clusters: %w", err)
		}

		for _, clusterName := range listOutput.Clusters {
			descOutput, err := rs.eksClient.DescribeCluster(ctx, &eks.DescribeClusterInput{Name: aws.String(clusterName)})
			if err != nil || descOutput.Cluster == nil {
				continue
			}
			resources = append(resources, rs.convertEKSCluster(descOutput.Cluster))
		}

		if listOutput.NextToken == nil {
			break
		}
		nextToken = listOutput.NextToken
	}

	return resources, nil
}

func (rs *regionScanner) convertEKSCluster(cluster *ekstypes.Cluster) resource.Resource {
	status := resource.StatusUnknown
	switch cluster.Status {
	case ekstypes.ClusterStatusActive, ekstypes.ClusterStatusUpdating, ekstypes.ClusterStatusCreating:
		status = resource.StatusRunning
	case ekstypes.ClusterStatusDeleting, ekstypes.ClusterStatusFailed:
		status = resource.StatusTerminated
	}

	name := aws.ToString(cluster.Name)
	r := newResource(name, name, rs.region, rs.accountID, resource.TypeKubernetes, status)
	for k, v := range cluster.Tags {
		r.Tags[k] = v
	}
	r.CreatedAt = formatTime(cluster.CreatedAt)
	r.Metadata["arn"] = aws.ToString(cluster.Arn)
	r.Metadata["version"] = aws.ToString(cluster.Version)
	// EKS always authorizes through Kubernetes RBAC and ships no dashboard.
	r.Metadata["rbacEnabled"] = true
	r.Metadata["dashboardEnabled"] = false
	return r
}

// scanLambda scans Lambda functions and their tags.
func (rs *regionScanner) scanLambda(ctx context.Context) ([]resource.Resource, error) {
	var resources []resource.Resource
	var marker *string

	for {
		output, err := rs.lambdaClient.ListFunctions(ctx, &lambda.ListFunctionsInput{Marker: marker})
		if err != nil {
			return nil, fmt.Errorf("list functions: %w", err)
		}

		for _, fn := range output.Functions {
			r := rs.convertLambda(fn)
			tags, err := rs.lambdaClient.ListTags(ctx, &lambda.ListTagsInput{Resource: fn.FunctionArn})
			if err != nil {
				return nil, fmt.Errorf("list tags %s: %w", r.ID, err)
			}
			for k, v := range tags.Tags {
				r.Tags[k] = v
			}
			resources = append(resources, r)
		}

		if output.NextMarker == nil {
			break
		}
		marker = output.NextMarker
	}

	return resources, nil
}

// lambdaTimeLayout is the LastModified format returned by the Lambda API.
const lambdaTimeLayout = "2006-01-02T15:04:05.000-0700"

func (rs *regionScanner) convertLambda(fn lambdatypes.FunctionConfiguration) resource.Resource {
	status := resource.StatusRunning
	switch fn.State {
	case lambdatypes.StateInactive:
		status = resource.StatusStopped
	case lambdatypes.StateFailed:
		status = resource.StatusUnknown
	}

	name := aws.ToString(fn.FunctionName)
	r := newResource(name, name, rs.region, rs.accountID, resource.TypeFunction, status)
	if t, err := time.Parse(lambdaTimeLayout, aws.ToString(fn.LastModified)); err == nil {
		r.CreatedAt = formatTime(&t)
	}
	r.Metadata["arn"] = aws.ToString(fn.FunctionArn)
	r.Metadata["runtime"] = string(fn.Runtime)
	r.Metadata["memory"] = fmt.Sprintf("%dMB", aws.ToInt32(fn.MemorySize))
	return r
}

// extractNameTag extracts the Name tag from EC2 tags.
func extractNameTag(tags []ec2types.Tag) string {
	for _, tag := range tags {
		if aws.ToString(tag.Key) == "Name" {
			return aws.ToString(tag.Value)
		}
	}
	return ""
}
