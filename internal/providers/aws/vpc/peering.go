package vpc

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/pankaj-dahiya-devops/cloud-inventory/internal/collect"
	"github.com/pankaj-dahiya-devops/cloud-inventory/internal/models"
)

func (r *run) describePeeringConnections(ctx context.Context) {
	conns := collect.Gather(ctx, r.exec, passPeerings, r.c.clients,
		func(ctx context.Context, region string, api API) ([]models.VPCPeeringConnection, error) {
			paginator := ec2.NewDescribeVpcPeeringConnectionsPaginator(api, &ec2.DescribeVpcPeeringConnectionsInput{})

			var out []models.VPCPeeringConnection
			for paginator.HasMorePages() {
				page, err := paginator.NextPage(ctx)
				if err != nil {
					return nil, fmt.Errorf("DescribeVpcPeeringConnections page: %w", err)
				}
				for _, raw := range page.VpcPeeringConnections {
					if raw.VpcPeeringConnectionId == nil {
						r.exec.Report(ctx, passPeerings, region, collect.MissingField(ResourcePeering, "VpcPeeringConnectionId"))
						continue
					}
					if !r.accept(*raw.VpcPeeringConnectionId) {
						continue
					}
					out = append(out, toPeering(raw, region))
				}
			}
			return out, nil
		})

	r.mu.Lock()
	r.peerings = conns
	r.mu.Unlock()
}

func toPeering(raw ec2types.VpcPeeringConnection, region string) models.VPCPeeringConnection {
	conn := models.VPCPeeringConnection{
		ID:          aws.ToString(raw.VpcPeeringConnectionId),
		Region:      region,
		RouteTables: []models.PeeringRouteTable{},
	}
	if a := raw.AccepterVpcInfo; a != nil {
		conn.AccepterVPC = aws.ToString(a.VpcId)
		conn.AccepterCIDR = a.CidrBlock
	}
	if q := raw.RequesterVpcInfo; q != nil {
		conn.RequesterVPC = aws.ToString(q.VpcId)
		conn.RequesterCIDR = q.CidrBlock
	}
	return conn
}

// describeRouteTables attaches every route table that routes through each
// peering connection. Routes created with the table are left out of the
// destination list, but the table itself is still recorded.
func (r *run) describeRouteTables(ctx context.Context) {
	collect.Sequential(ctx, r.exec, passRouteTables, r.c.clients, len(r.peerings),
		func(i int) string { return r.peerings[i].Region },
		func(ctx context.Context, api API, i int) error {
			id := r.peerings[i].ID
			paginator := ec2.NewDescribeRouteTablesPaginator(api, &ec2.DescribeRouteTablesInput{
				Filters: []ec2types.Filter{{Name: aws.String("route.vpc-peering-connection-id"), Values: []string{id}}},
			})

			var tables []models.PeeringRouteTable
			for paginator.HasMorePages() {
				page, err := paginator.NextPage(ctx)
				if err != nil {
					return collect.NotFound(fmt.Errorf("DescribeRouteTables %s: %w", id, err), codePeeringNotFound)
				}
				for _, rt := range page.RouteTables {
					if rt.RouteTableId == nil {
						r.exec.Report(ctx, passRouteTables, r.peerings[i].Region, collect.MissingField(ResourceRouteTable, "RouteTableId"))
						continue
					}
					tables = append(tables, toRouteTable(rt))
				}
			}

			r.mu.Lock()
			r.peerings[i].RouteTables = append(r.peerings[i].RouteTables, tables...)
			r.mu.Unlock()
			return nil
		})
}

func toRouteTable(rt ec2types.RouteTable) models.PeeringRouteTable {
	cidrs := []string{}
	for _, route := range rt.Routes {
		if route.Origin == ec2types.RouteOriginCreateRouteTable {
			continue
		}
		if route.DestinationCidrBlock != nil {
			cidrs = append(cidrs, *route.DestinationCidrBlock)
		}
	}
	return models.PeeringRouteTable{ID: aws.ToString(rt.RouteTableId), DestinationCIDRs: cidrs}
}
