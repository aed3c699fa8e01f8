package engine

import (
	"context"

	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/inventory"
	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/models"
)

// ReportFormat controls the CLI output format.
type ReportFormat string

const (
	ReportFormatJSON  ReportFormat = "json"
	ReportFormatTable ReportFormat = "table"
)

// ScanOptions configures a single scan.
// It is the sole input to Engine.Scan.
type ScanOptions struct {
	// Accounts restricts the scan to these account IDs or names.
	// When empty every account the provider lists is scanned.
	Accounts []string

	// SkipStorage disables storage-account and container enumeration.
	SkipStorage bool

	// SensitivePorts and OpenSources override the classification defaults
	// when non-empty.
	SensitivePorts []int
	OpenSources    []string

	// GenericSources overrides the trusted-range exclusion set when
	// non-empty.
	GenericSources []string
}

// ScanResult is everything a scan produced. Session stays valid for the
// remediation phase of the same run.
type ScanResult struct {
	Session   inventory.Session
	Inventory *models.Inventory
	Report    *models.ScanReport
}

// Engine is the central orchestration interface.
// It coordinates authentication, inventory collection, rule evaluation and
// trusted-range inference, returning a fully populated ScanReport.
//
// Engine must not call a cloud SDK directly; it delegates to the
// inventory.Provider and rules interfaces.
type Engine interface {
	Scan(ctx context.Context, opts ScanOptions) (*ScanResult, error)
}
