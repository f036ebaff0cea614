package vpc

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pankaj-dahiya-devops/cloud-inventory/internal/collect"
	"github.com/pankaj-dahiya-devops/cloud-inventory/internal/logging"
	"github.com/pankaj-dahiya-devops/cloud-inventory/internal/models"
	"github.com/pankaj-dahiya-devops/cloud-inventory/internal/scope"
)

// ── fake ─────────────────────────────────────────────────────────────────────

type fakeAPI struct {
	vpcs      []ec2types.Vpc
	vpcErr    error
	peerings  []ec2types.VpcPeeringConnection
	endpoints []ec2types.VpcEndpoint
	// services is paged by NextToken: one slice per page.
	services [][]ec2types.ServiceDetail

	flowLogs    map[string][]ec2types.FlowLog // by VPC id
	flowLogErr  map[string]error
	routeTables map[string][]ec2types.RouteTable // by peering connection id
	principals  map[string][]ec2types.AllowedPrincipal
	permErr     map[string]error
}

func (f *fakeAPI) DescribeVpcs(context.Context, *ec2.DescribeVpcsInput, ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error) {
	if f.vpcErr != nil {
		return nil, f.vpcErr
	}
	return &ec2.DescribeVpcsOutput{Vpcs: f.vpcs}, nil
}

func (f *fakeAPI) DescribeVpcPeeringConnections(context.Context, *ec2.DescribeVpcPeeringConnectionsInput, ...func(*ec2.Options)) (*ec2.DescribeVpcPeeringConnectionsOutput, error) {
	return &ec2.DescribeVpcPeeringConnectionsOutput{VpcPeeringConnections: f.peerings}, nil
}

func (f *fakeAPI) DescribeVpcEndpoints(context.Context, *ec2.DescribeVpcEndpointsInput, ...func(*ec2.Options)) (*ec2.DescribeVpcEndpointsOutput, error) {
	return &ec2.DescribeVpcEndpointsOutput{VpcEndpoints: f.endpoints}, nil
}

func (f *fakeAPI) DescribeVpcEndpointServices(_ context.Context, in *ec2.DescribeVpcEndpointServicesInput, _ ...func(*ec2.Options)) (*ec2.DescribeVpcEndpointServicesOutput, error) {
	if len(f.services) == 0 {
		return &ec2.DescribeVpcEndpointServicesOutput{}, nil
	}
	page := 0
	if in.NextToken != nil {
		page = int(aws.ToString(in.NextToken)[0] - '0')
	}
	out := &ec2.DescribeVpcEndpointServicesOutput{ServiceDetails: f.services[page]}
	if page+1 < len(f.services) {
		out.NextToken = aws.String(string(rune('0' + page + 1)))
	}
	return out, nil
}

func (f *fakeAPI) DescribeVpcEndpointServicePermissions(_ context.Context, in *ec2.DescribeVpcEndpointServicePermissionsInput, _ ...func(*ec2.Options)) (*ec2.DescribeVpcEndpointServicePermissionsOutput, error) {
	id := aws.ToString(in.ServiceId)
	if err := f.permErr[id]; err != nil {
		return nil, err
	}
	return &ec2.DescribeVpcEndpointServicePermissionsOutput{AllowedPrincipals: f.principals[id]}, nil
}

func (f *fakeAPI) DescribeRouteTables(_ context.Context, in *ec2.DescribeRouteTablesInput, _ ...func(*ec2.Options)) (*ec2.DescribeRouteTablesOutput, error) {
	return &ec2.DescribeRouteTablesOutput{RouteTables: f.routeTables[filterValue(in.Filters, "route.vpc-peering-connection-id")]}, nil
}

func (f *fakeAPI) DescribeFlowLogs(_ context.Context, in *ec2.DescribeFlowLogsInput, _ ...func(*ec2.Options)) (*ec2.DescribeFlowLogsOutput, error) {
	id := filterValue(in.Filter, "resource-id")
	if err := f.flowLogErr[id]; err != nil {
		return nil, err
	}
	return &ec2.DescribeFlowLogsOutput{FlowLogs: f.flowLogs[id]}, nil
}

func filterValue(filters []ec2types.Filter, name string) string {
	for _, f := range filters {
		if aws.ToString(f.Name) == name && len(f.Values) == 1 {
			return f.Values[0]
		}
	}
	return ""
}

// ── helpers ──────────────────────────────────────────────────────────────────

func vpc(id, cidr string, isDefault bool) ec2types.Vpc {
	return ec2types.Vpc{VpcId: aws.String(id), CidrBlock: aws.String(cidr), IsDefault: aws.Bool(isDefault)}
}

func newCollector(t *testing.T, clients map[string]*fakeAPI, opts ...Option) (*Collector, *logging.Recorder) {
	t.Helper()
	rec := logging.NewRecorder()
	set := make(map[string]API, len(clients))
	for region, f := range clients {
		set[region] = f
	}
	opts = append(opts, WithExecutorOptions(collect.WithLogger(rec.Logger())))
	return NewCollector(collect.NewClientSet(set), opts...), rec
}

func fixture() map[string]*fakeAPI {
	return map[string]*fakeAPI{
		"us-east-1": {
			vpcs: []ec2types.Vpc{vpc("vpc-logged", "10.0.0.0/16", false), vpc("vpc-quiet", "172.31.0.0/16", true)},
			flowLogs: map[string][]ec2types.FlowLog{
				"vpc-logged": {{FlowLogId: aws.String("fl-1")}},
			},
			peerings: []ec2types.VpcPeeringConnection{{
				VpcPeeringConnectionId: aws.String("pcx-1"),
				AccepterVpcInfo:        &ec2types.VpcPeeringConnectionVpcInfo{VpcId: aws.String("vpc-a"), CidrBlock: aws.String("10.1.0.0/16")},
				RequesterVpcInfo:       &ec2types.VpcPeeringConnectionVpcInfo{VpcId: aws.String("vpc-logged"), CidrBlock: aws.String("10.0.0.0/16")},
			}},
			routeTables: map[string][]ec2types.RouteTable{
				"pcx-1": {
					{
						RouteTableId: aws.String("rtb-local"),
						Routes: []ec2types.Route{
							{DestinationCidrBlock: aws.String("10.0.0.0/16"), Origin: ec2types.RouteOriginCreateRouteTable},
						},
					},
					{
						RouteTableId: aws.String("rtb-peer"),
						Routes: []ec2types.Route{
							{DestinationCidrBlock: aws.String("10.0.0.0/16"), Origin: ec2types.RouteOriginCreateRouteTable},
							{DestinationCidrBlock: aws.String("10.1.0.0/16"), Origin: ec2types.RouteOriginCreateRoute},
							{DestinationIpv6CidrBlock: aws.String("::/0"), Origin: ec2types.RouteOriginCreateRoute},
						},
					},
				},
			},
			endpoints: []ec2types.VpcEndpoint{{
				VpcEndpointId:  aws.String("vpce-1"),
				VpcId:          aws.String("vpc-logged"),
				State:          ec2types.State("available"),
				OwnerId:        aws.String("123456789012"),
				PolicyDocument: aws.String(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":"*"}]}`),
			}},
			services: [][]ec2types.ServiceDetail{
				{{ServiceId: aws.String("vpce-svc-aws"), ServiceName: aws.String("com.amazonaws.us-east-1.s3"), Owner: aws.String("amazon")}},
				{{ServiceId: aws.String("vpce-svc-1"), ServiceName: aws.String("com.amazonaws.vpce.us-east-1.vpce-svc-1"), Owner: aws.String("123456789012")}},
			},
			principals: map[string][]ec2types.AllowedPrincipal{
				"vpce-svc-1": {{Principal: aws.String("arn:aws:iam::210987654321:root")}},
			},
		},
		"eu-west-1": {},
	}
}

// ── tests ────────────────────────────────────────────────────────────────────

func TestCollect_FlowLogExplicitTrueAndFalse(t *testing.T) {
	c, rec := newCollector(t, fixture())

	inv := c.Collect(context.Background())

	require.Len(t, inv.VPCs, 2)
	assert.Equal(t, "vpc-logged", inv.VPCs[0].ID)
	require.NotNil(t, inv.VPCs[0].FlowLog)
	assert.True(t, *inv.VPCs[0].FlowLog)

	require.NotNil(t, inv.VPCs[1].FlowLog)
	assert.False(t, *inv.VPCs[1].FlowLog)
	assert.True(t, inv.VPCs[1].Default)
	assert.Equal(t, "172.31.0.0/16", inv.VPCs[1].CIDRBlock)

	assert.Empty(t, inv.Gaps)
	assert.Empty(t, rec.Entries())
}

func TestCollect_FlowLogLookupFailureLeavesUnknown(t *testing.T) {
	clients := fixture()
	clients["us-east-1"].flowLogErr = map[string]error{"vpc-quiet": errors.New("access denied")}
	c, rec := newCollector(t, clients)

	inv := c.Collect(context.Background())

	require.Len(t, inv.VPCs, 2)
	assert.True(t, *inv.VPCs[0].FlowLog)
	assert.Nil(t, inv.VPCs[1].FlowLog)

	errs := rec.AtLevel(slog.LevelError)
	require.Len(t, errs, 1)
	assert.Equal(t, "describe_flow_logs", errs[0].Attrs["pass"])
	assert.Equal(t, "us-east-1", errs[0].Attrs["region"])
}

func TestCollect_DefaultOnlyRouteTableKeptWithEmptyCIDRs(t *testing.T) {
	c, _ := newCollector(t, fixture())

	inv := c.Collect(context.Background())

	require.Len(t, inv.PeeringConnections, 1)
	pcx := inv.PeeringConnections[0]
	assert.Equal(t, "vpc-a", pcx.AccepterVPC)
	assert.Equal(t, "10.1.0.0/16", aws.ToString(pcx.AccepterCIDR))
	assert.Equal(t, "vpc-logged", pcx.RequesterVPC)

	require.Len(t, pcx.RouteTables, 2)
	assert.Equal(t, models.PeeringRouteTable{ID: "rtb-local", DestinationCIDRs: []string{}}, pcx.RouteTables[0])
	assert.Equal(t, models.PeeringRouteTable{ID: "rtb-peer", DestinationCIDRs: []string{"10.1.0.0/16"}}, pcx.RouteTables[1])
}

func TestCollect_RouteTableWithoutIDSkipped(t *testing.T) {
	clients := fixture()
	f := clients["us-east-1"]
	f.routeTables["pcx-1"] = append(f.routeTables["pcx-1"], ec2types.RouteTable{
		Routes: []ec2types.Route{{DestinationCidrBlock: aws.String("10.9.0.0/16"), Origin: ec2types.RouteOriginCreateRoute}},
	})
	c, rec := newCollector(t, clients)

	inv := c.Collect(context.Background())

	pcx := inv.PeeringConnections[0]
	require.Len(t, pcx.RouteTables, 2)
	for _, rt := range pcx.RouteTables {
		assert.NotEmpty(t, rt.ID)
	}

	errs := rec.AtLevel(slog.LevelError)
	require.Len(t, errs, 1)
	assert.Equal(t, "skipping malformed record", errs[0].Message)
	assert.Equal(t, "describe_route_tables", errs[0].Attrs["pass"])

	require.Len(t, inv.Gaps, 1)
	assert.Equal(t, models.CollectionGap{
		Region:       "us-east-1",
		ResourceType: ResourcePeering,
		Pass:         "describe_route_tables",
		Severity:     models.GapError,
		Message:      "required field missing: vpc_route_table record has no RouteTableId",
	}, inv.Gaps[0])
}

func TestCollect_EndpointPolicyDecoded(t *testing.T) {
	c, _ := newCollector(t, fixture())

	inv := c.Collect(context.Background())

	require.Len(t, inv.Endpoints, 1)
	ep := inv.Endpoints[0]
	assert.Equal(t, "available", ep.State)
	assert.Equal(t, "vpc-logged", ep.VPCID)
	require.NotNil(t, ep.PolicyDocument)
	assert.Equal(t, "2012-10-17", ep.PolicyDocument["Version"])
}

func TestCollect_MalformedEndpointPolicyIsWarning(t *testing.T) {
	clients := fixture()
	clients["us-east-1"].endpoints[0].PolicyDocument = aws.String("{not json")
	c, rec := newCollector(t, clients)

	inv := c.Collect(context.Background())

	require.Len(t, inv.Endpoints, 1)
	assert.Nil(t, inv.Endpoints[0].PolicyDocument)
	warns := rec.AtLevel(slog.LevelWarn)
	require.Len(t, warns, 1)
	assert.Equal(t, ResourceEndpoint, warns[0].Attrs["resource_type"])
	assert.Empty(t, rec.AtLevel(slog.LevelError))
}

func TestCollect_EndpointServicesSkipAmazonOwned(t *testing.T) {
	c, _ := newCollector(t, fixture())

	inv := c.Collect(context.Background())

	require.Len(t, inv.EndpointServices, 1)
	svc := inv.EndpointServices[0]
	assert.Equal(t, "vpce-svc-1", svc.ID)
	assert.Equal(t, "123456789012", svc.OwnerID)
	assert.Equal(t, []string{"arn:aws:iam::210987654321:root"}, svc.AllowedPrincipals)
}

func TestCollect_EndpointServiceGoneIsWarning(t *testing.T) {
	clients := fixture()
	clients["us-east-1"].permErr = map[string]error{
		"vpce-svc-1": &smithy.GenericAPIError{Code: "InvalidVpcEndpointServiceId.NotFound", Message: "gone"},
	}
	c, rec := newCollector(t, clients)

	inv := c.Collect(context.Background())

	require.Len(t, inv.EndpointServices, 1)
	assert.Empty(t, inv.EndpointServices[0].AllowedPrincipals)
	assert.Len(t, rec.AtLevel(slog.LevelWarn), 1)
	assert.Empty(t, rec.AtLevel(slog.LevelError))
}

func TestCollect_RegionFailureIsIsolated(t *testing.T) {
	clients := fixture()
	clients["eu-west-1"].vpcErr = errors.New("request timeout")
	c, rec := newCollector(t, clients)

	inv := c.Collect(context.Background())

	assert.Len(t, inv.VPCs, 2)
	errs := rec.AtLevel(slog.LevelError)
	require.Len(t, errs, 1)
	assert.Equal(t, "eu-west-1", errs[0].Attrs["region"])
	assert.Equal(t, ResourceVPC, errs[0].Attrs["resource_type"])
}

func TestCollect_FilterAppliesBeforeCrossPasses(t *testing.T) {
	c, _ := newCollector(t, fixture(), WithScope(scope.ARNMatcher{}, []string{"vpc-quiet"}))

	inv := c.Collect(context.Background())

	require.Len(t, inv.VPCs, 1)
	assert.Equal(t, "vpc-quiet", inv.VPCs[0].ID)
	assert.Empty(t, inv.PeeringConnections)
	assert.Empty(t, inv.Endpoints)
	assert.Empty(t, inv.EndpointServices)
}

func TestCollect_RegionsAttributedFromClient(t *testing.T) {
	clients := fixture()
	clients["eu-west-1"].vpcs = []ec2types.Vpc{vpc("vpc-eu", "10.9.0.0/16", false)}
	c, _ := newCollector(t, clients)

	inv := c.Collect(context.Background())

	require.Len(t, inv.VPCs, 3)
	assert.Equal(t, "eu-west-1", inv.VPCs[0].Region)
	assert.Equal(t, "us-east-1", inv.VPCs[1].Region)
	require.NotNil(t, inv.VPCs[0].FlowLog)
	assert.False(t, *inv.VPCs[0].FlowLog)
}

func TestCollect_EmptyAccount(t *testing.T) {
	c, rec := newCollector(t, map[string]*fakeAPI{"us-east-1": {}, "eu-west-1": {}})

	inv := c.Collect(context.Background())

	assert.NotNil(t, inv.VPCs)
	assert.Empty(t, inv.VPCs)
	assert.Empty(t, inv.PeeringConnections)
	assert.Empty(t, inv.Endpoints)
	assert.Empty(t, inv.EndpointServices)
	assert.Empty(t, rec.Entries())
}

func TestCollect_Idempotent(t *testing.T) {
	c, _ := newCollector(t, fixture())

	assert.Equal(t, c.Collect(context.Background()), c.Collect(context.Background()))
}
