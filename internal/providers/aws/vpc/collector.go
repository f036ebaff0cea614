// Package vpc collects virtual networks with their flow log status, peering
// connections with the route tables that use them, endpoints, and
// customer-owned endpoint services with their allowed principals.
package vpc

import (
	"context"
	"sync"

	"github.com/pankaj-dahiya-devops/cloud-inventory/internal/collect"
	"github.com/pankaj-dahiya-devops/cloud-inventory/internal/models"
	"github.com/pankaj-dahiya-devops/cloud-inventory/internal/scope"
)

// Resource types reported on log records and gaps.
const (
	ResourceVPC             = "vpc"
	ResourcePeering         = "vpc_peering_connection"
	ResourceEndpoint        = "vpc_endpoint"
	ResourceEndpointService = "vpc_endpoint_service"
	ResourceRouteTable      = "vpc_route_table"
)

const (
	codeVPCNotFound             = "InvalidVpcID.NotFound"
	codePeeringNotFound         = "InvalidVpcPeeringConnectionID.NotFound"
	codeEndpointServiceNotFound = "InvalidVpcEndpointServiceId.NotFound"
)

var (
	passVPCs             = collect.Pass{ResourceType: ResourceVPC, Name: "describe_vpcs"}
	passPeerings         = collect.Pass{ResourceType: ResourcePeering, Name: "describe_vpc_peering_connections"}
	passEndpoints        = collect.Pass{ResourceType: ResourceEndpoint, Name: "describe_vpc_endpoints"}
	passEndpointServices = collect.Pass{ResourceType: ResourceEndpointService, Name: "describe_vpc_endpoint_services"}
	passFlowLogs         = collect.Pass{ResourceType: ResourceVPC, Name: "describe_flow_logs"}
	passRouteTables      = collect.Pass{ResourceType: ResourcePeering, Name: "describe_route_tables"}
	passPermissions      = collect.Pass{ResourceType: ResourceEndpointService, Name: "describe_vpc_endpoint_service_permissions"}
)

// Collector builds a VPCInventory from one EC2 client per region.
type Collector struct {
	clients   *collect.ClientSet[API]
	filter    scope.Filter
	resources []string
	execOpts  []collect.Option
}

// Option configures a Collector.
type Option func(*Collector)

// WithScope restricts collection to resources whose id the filter selects
// from resources. It applies to VPCs, peering connections, endpoints and
// endpoint services alike.
func WithScope(f scope.Filter, resources []string) Option {
	return func(c *Collector) {
		c.filter = f
		c.resources = resources
	}
}

// WithExecutorOptions passes options to the executor of every run.
func WithExecutorOptions(opts ...collect.Option) Option {
	return func(c *Collector) { c.execOpts = append(c.execOpts, opts...) }
}

// NewCollector returns a Collector over clients.
func NewCollector(clients *collect.ClientSet[API], opts ...Option) *Collector {
	c := &Collector{clients: clients}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect enumerates the four primary resource types across all regions,
// then runs the cross-resource lookups against the client of each
// resource's own region.
func (c *Collector) Collect(ctx context.Context) *models.VPCInventory {
	r := &run{c: c, exec: collect.NewExecutor(c.execOpts...)}
	p := &collect.Pipeline{
		Primary: []collect.Step{
			r.describeVPCs,
			r.describePeeringConnections,
			r.describeEndpoints,
			r.describeEndpointServices,
		},
		Cross: []collect.Step{
			r.describeFlowLogs,
			r.describeRouteTables,
			r.describeEndpointServicePermissions,
		},
	}
	_ = p.Execute(ctx)

	return &models.VPCInventory{
		VPCs:               nonNil(r.vpcs),
		PeeringConnections: nonNil(r.peerings),
		Endpoints:          nonNil(r.endpoints),
		EndpointServices:   nonNil(r.services),
		Gaps:               r.exec.Gaps(),
	}
}

// run holds the state of one Collect call. Each slice is set once by its
// primary pass; cross passes only fill fields of existing entries.
type run struct {
	c    *Collector
	exec *collect.Executor

	mu        sync.Mutex
	vpcs      []models.VPC
	peerings  []models.VPCPeeringConnection
	endpoints []models.VPCEndpoint
	services  []models.VPCEndpointService
}

func (r *run) accept(id string) bool {
	return scope.Accept(r.c.filter, id, r.c.resources)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
