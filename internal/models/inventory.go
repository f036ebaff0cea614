package models

import "time"

// Inventory is the complete collected model for one run. It is built once,
// handed to a consumer, and never mutated after that.
type Inventory struct {
	AccountID   string          `json:"account_id"`
	Profile     string          `json:"profile"`
	Regions     []string        `json:"regions"`
	CollectedAt time.Time       `json:"collected_at"`
	ELBv2       *ELBv2Inventory `json:"elbv2,omitempty"`
	VPC         *VPCInventory   `json:"vpc,omitempty"`
}

// Gaps returns every collection gap across all collected services.
func (inv *Inventory) Gaps() []CollectionGap {
	var gaps []CollectionGap
	if inv.ELBv2 != nil {
		gaps = append(gaps, inv.ELBv2.Gaps...)
	}
	if inv.VPC != nil {
		gaps = append(gaps, inv.VPC.Gaps...)
	}
	return gaps
}

// GapSeverity classifies why part of the model is missing.
type GapSeverity string

const (
	// GapError is a transient regional failure or a malformed record.
	GapError GapSeverity = "error"

	// GapWarning is an expected absence, e.g. a parent deleted between passes.
	GapWarning GapSeverity = "warning"
)

// CollectionGap records one isolated failure. A model with gaps is partial;
// the consumer decides whether that is acceptable.
type CollectionGap struct {
	Region       string      `json:"region"`
	ResourceType string      `json:"resource_type"`
	Pass         string      `json:"pass"`
	Severity     GapSeverity `json:"severity"`
	Message      string      `json:"message"`
}
