package models

// ---------------------------------------------------------------------------
// Elastic Load Balancing v2
// ---------------------------------------------------------------------------

// ELBv2Inventory is the output of the load balancer collector.
type ELBv2Inventory struct {
	LoadBalancers []LoadBalancer  `json:"load_balancers"`
	Gaps          []CollectionGap `json:"gaps,omitempty"`
}

// LoadBalancer is an Application, Network, or Gateway load balancer.
//
// Pointer fields are nil until the pass that owns them has observed a value.
// A nil attribute means "unknown", never "disabled".
type LoadBalancer struct {
	ARN    string `json:"arn"`
	Name   string `json:"name"`
	Region string `json:"region"`
	Type   string `json:"type"`

	DNSName *string `json:"dns_name"`
	Scheme  *string `json:"scheme"`

	// Set by the attribute pass.
	AccessLogs              *string `json:"access_logs"`
	DesyncMitigationMode    *string `json:"desync_mitigation_mode"`
	DeletionProtection      *string `json:"deletion_protection"`
	DropInvalidHeaderFields *string `json:"drop_invalid_header_fields"`

	Listeners []Listener `json:"listeners"`
}

// Listener belongs to exactly one load balancer, referenced by ARN.
type Listener struct {
	ARN             string         `json:"arn"`
	LoadBalancerARN string         `json:"load_balancer_arn"`
	Region          string         `json:"region"`
	Port            *int32         `json:"port"`
	Protocol        *string        `json:"protocol"`
	SSLPolicy       *string        `json:"ssl_policy"`
	Rules           []ListenerRule `json:"rules"`
}

// ListenerRule is one routing rule of a listener, in API order.
type ListenerRule struct {
	ARN        string          `json:"arn"`
	Priority   *string         `json:"priority"`
	IsDefault  bool            `json:"is_default"`
	Actions    []RuleAction    `json:"actions"`
	Conditions []RuleCondition `json:"conditions"`
}

// RuleAction is the subset of a listener rule action needed for policy checks.
type RuleAction struct {
	Type             string  `json:"type"`
	Order            *int32  `json:"order"`
	TargetGroupARN   *string `json:"target_group_arn"`
	RedirectProtocol *string `json:"redirect_protocol"`
	RedirectPort     *string `json:"redirect_port"`
}

// RuleCondition is one match condition of a listener rule.
type RuleCondition struct {
	Field  string   `json:"field"`
	Values []string `json:"values"`
}
