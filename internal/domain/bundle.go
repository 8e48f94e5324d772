package domain

// BundleStatus is the staging service's view of a submitted bundle.
type BundleStatus string

const (
	BundlePending  BundleStatus = "pending"
	BundleIncluded BundleStatus = "included"
	BundleFailed   BundleStatus = "failed"
)

// BundleStepKind identifies the kind of one abstract transaction step.
type BundleStepKind string

const (
	// StepExecute is the source-side trade execution step. Every bundle
	// contains at least one.
	StepExecute BundleStepKind = "execute"
	// StepTransfer moves the bought tokens to the sell venue. Present only
	// when the two venues differ.
	StepTransfer BundleStepKind = "transfer"
)

// BundleStep is one ordered step in a bundle body.
type BundleStep struct {
	Kind         BundleStepKind `json:"kind"`
	Venue        string         `json:"venue"`
	Token        string         `json:"token"`
	AmountTokens float64        `json:"amount_tokens"`
	// Destination is set on transfer steps only.
	Destination string `json:"destination,omitempty"`
}

// BundleInclusion is the inclusion window requested from the staging service.
type BundleInclusion struct {
	Block    string `json:"block"`
	MaxBlock string `json:"maxBlock"`
}

// BundleMetadata ties a bundle back to the plan it executes.
type BundleMetadata struct {
	PlanID         string  `json:"planId"`
	ExpectedProfit float64 `json:"expectedProfit"`
	Timestamp      int64   `json:"timestamp"`
}

// Bundle is an ordered set of execution steps submitted together for
// privacy-preserving inclusion.
type Bundle struct {
	ID        string          `json:"id"`
	Inclusion BundleInclusion `json:"inclusion"`
	Body      []BundleStep    `json:"body"`
	Metadata  BundleMetadata  `json:"metadata"`
}

// StageResult is the definitive outcome of staging one bundle: the stager
// never leaves a caller without one of included, failed, or an error.
type StageResult struct {
	BundleID       string
	Status         BundleStatus
	InclusionBlock string
	Attempts       int
}
