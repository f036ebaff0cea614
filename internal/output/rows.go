package output

import (
	"fmt"
	"strings"

	"github.com/pankaj-dahiya-devops/cloud-inventory/internal/models"
)

type row struct {
	id, region, kind, detail string
}

// inventoryRows flattens inv in model order: load balancers with their
// listeners, then VPCs, peering connections, endpoints and endpoint services.
func inventoryRows(inv *models.Inventory) []row {
	var rows []row
	if e := inv.ELBv2; e != nil {
		for _, lb := range e.LoadBalancers {
			rows = append(rows, row{lb.ARN, lb.Region, "elbv2_load_balancer", loadBalancerDetail(lb)})
			for _, l := range lb.Listeners {
				rows = append(rows, row{l.ARN, l.Region, "elbv2_listener", listenerDetail(l)})
			}
		}
	}
	if v := inv.VPC; v != nil {
		for _, n := range v.VPCs {
			rows = append(rows, row{n.ID, n.Region, "vpc", vpcDetail(n)})
		}
		for _, p := range v.PeeringConnections {
			rows = append(rows, row{p.ID, p.Region, "vpc_peering_connection",
				fmt.Sprintf("%s -> %s, %d route tables", p.RequesterVPC, p.AccepterVPC, len(p.RouteTables))})
		}
		for _, ep := range v.Endpoints {
			detail := ep.VPCID + " " + ep.State
			if ep.PolicyDocument != nil {
				detail += ", policy"
			}
			rows = append(rows, row{ep.ID, ep.Region, "vpc_endpoint", detail})
		}
		for _, s := range v.EndpointServices {
			rows = append(rows, row{s.ID, s.Region, "vpc_endpoint_service",
				fmt.Sprintf("%s, %d allowed principals", s.ServiceName, len(s.AllowedPrincipals))})
		}
	}
	return rows
}

func loadBalancerDetail(lb models.LoadBalancer) string {
	parts := []string{lb.Type}
	if lb.Scheme != nil {
		parts = append(parts, *lb.Scheme)
	}
	parts = append(parts, fmt.Sprintf("%d listeners", len(lb.Listeners)))
	if lb.DeletionProtection != nil {
		parts = append(parts, "deletion_protection="+*lb.DeletionProtection)
	}
	return strings.Join(parts, ", ")
}

func listenerDetail(l models.Listener) string {
	var b strings.Builder
	if l.Protocol != nil {
		b.WriteString(*l.Protocol)
	}
	if l.Port != nil {
		fmt.Fprintf(&b, ":%d", *l.Port)
	}
	fmt.Fprintf(&b, ", %d rules", len(l.Rules))
	return b.String()
}

func vpcDetail(n models.VPC) string {
	flow := "unknown"
	if n.FlowLog != nil {
		flow = fmt.Sprintf("%t", *n.FlowLog)
	}
	d := fmt.Sprintf("%s, flow_log=%s", n.CIDRBlock, flow)
	if n.Default {
		d += ", default"
	}
	return d
}
