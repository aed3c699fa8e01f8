package rules

import (
	"fmt"
	"time"

	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/models"
)

// StoragePublicContainerRule flags containers whose public-access level is
// not off. Container-level access also allows anonymous listing and is HIGH;
// blob-level access is MEDIUM.
type StoragePublicContainerRule struct{}

func (r StoragePublicContainerRule) ID() string     { return "STORAGE_PUBLIC_CONTAINER" }
func (r StoragePublicContainerRule) Name() string   { return "Storage Container With Public Access" }
func (r StoragePublicContainerRule) Domain() string { return models.DomainStorage }

// Evaluate returns one finding per public container in inventory order.
func (r StoragePublicContainerRule) Evaluate(ctx RuleContext) []models.Finding {
	if ctx.Inventory == nil {
		return nil
	}
	var findings []models.Finding
	for i := range ctx.Inventory.Containers {
		c := &ctx.Inventory.Containers[i]
		if !c.IsPublic() {
			continue
		}
		sev := models.SeverityMedium
		if c.PublicAccess == models.PublicAccessContainer {
			sev = models.SeverityHigh
		}
		findings = append(findings, models.Finding{
			ID:             fmt.Sprintf("%s-%s/%s/%s", r.ID(), c.AccountID, c.Account, c.Name),
			RuleID:         r.ID(),
			ResourceID:     c.Account + "/" + c.Name,
			ResourceType:   models.ResourceStorageContainer,
			AccountID:      c.AccountID,
			ResourceGroup:  c.ResourceGroup,
			Severity:       sev,
			Explanation:    fmt.Sprintf("Container %s in %s allows anonymous %s access.", c.Name, c.Account, c.PublicAccess),
			Recommendation: "Issue time-limited read tokens to current consumers, then disable public access on the account.",
			DetectedAt:     time.Now().UTC(),
			Metadata: map[string]any{
				"public_access": string(c.PublicAccess),
			},
			Container: c,
		})
	}
	return findings
}
