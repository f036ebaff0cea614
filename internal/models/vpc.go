package models

// ---------------------------------------------------------------------------
// Virtual private cloud
// ---------------------------------------------------------------------------

// VPCInventory is the output of the network collector.
type VPCInventory struct {
	VPCs               []VPC                  `json:"vpcs"`
	PeeringConnections []VPCPeeringConnection `json:"peering_connections"`
	Endpoints          []VPCEndpoint          `json:"endpoints"`
	EndpointServices   []VPCEndpointService   `json:"endpoint_services"`
	Gaps               []CollectionGap        `json:"gaps,omitempty"`
}

// VPC is a virtual network.
type VPC struct {
	ID        string `json:"id"`
	Region    string `json:"region"`
	Default   bool   `json:"default"`
	CIDRBlock string `json:"cidr_block"`

	// FlowLog is true when at least one flow log targets the VPC and false
	// when the lookup returned none. It stays nil if the lookup failed.
	FlowLog *bool `json:"flow_log"`
}

// VPCPeeringConnection links two VPCs. Its route tables are attached by a
// lookup keyed on the connection id.
type VPCPeeringConnection struct {
	ID          string `json:"id"`
	Region      string `json:"region"`
	AccepterVPC string `json:"accepter_vpc"`

	// AccepterCIDR is the accepter block as the API reports it, not blanked
	// out. It is nil only when the response omits it.
	AccepterCIDR  *string             `json:"accepter_cidr"`
	RequesterVPC  string              `json:"requester_vpc"`
	RequesterCIDR *string             `json:"requester_cidr"`
	RouteTables   []PeeringRouteTable `json:"route_tables"`
}

// PeeringRouteTable is a route table that routes through a peering
// connection. DestinationCIDRs excludes routes created with the table
// itself, so it may be empty while the table is still recorded.
type PeeringRouteTable struct {
	ID               string   `json:"id"`
	DestinationCIDRs []string `json:"destination_cidrs"`
}

// VPCEndpoint is an interface or gateway endpoint.
type VPCEndpoint struct {
	ID             string         `json:"id"`
	Region         string         `json:"region"`
	VPCID          string         `json:"vpc_id"`
	State          string         `json:"state"`
	OwnerID        string         `json:"owner_id"`
	PolicyDocument map[string]any `json:"policy_document"`
}

// VPCEndpointService is a customer-owned endpoint service.
type VPCEndpointService struct {
	ID                string   `json:"id"`
	Region            string   `json:"region"`
	ServiceName       string   `json:"service_name"`
	OwnerID           string   `json:"owner_id"`
	AllowedPrincipals []string `json:"allowed_principals"`
}
