package azure

import (
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/storage/armstorage"

	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/models"
)

// resourceGroupOf extracts the resource group from an ARM resource ID.
func resourceGroupOf(id *string) string {
	if id == nil {
		return ""
	}
	rid, err := arm.ParseResourceID(*id)
	if err != nil {
		return ""
	}
	return rid.ResourceGroupName
}

func groupFromNSG(subscriptionID string, nsg *armnetwork.SecurityGroup) models.NetworkRuleGroup {
	g := models.NetworkRuleGroup{
		ID:            strVal(nsg.ID),
		Name:          strVal(nsg.Name),
		AccountID:     subscriptionID,
		ResourceGroup: resourceGroupOf(nsg.ID),
		Location:      strVal(nsg.Location),
	}
	if nsg.Properties == nil {
		return g
	}
	for _, sr := range nsg.Properties.SecurityRules {
		if sr == nil || sr.Name == nil {
			continue
		}
		r := ruleFromARM(sr)
		r.GroupName = g.Name
		r.AccountID = subscriptionID
		r.ResourceGroup = g.ResourceGroup
		g.Rules = append(g.Rules, r)
	}
	return g
}

func ruleFromARM(sr *armnetwork.SecurityRule) models.NetworkRule {
	r := models.NetworkRule{Name: *sr.Name}
	props := sr.Properties
	if props == nil {
		return r
	}
	if props.Direction != nil {
		r.Direction = models.Direction(*props.Direction)
	}
	if props.Access != nil {
		r.Access = models.Access(*props.Access)
	}
	if props.Protocol != nil {
		r.Protocol = string(*props.Protocol)
	}
	if props.Priority != nil {
		r.Priority = int(*props.Priority)
	}

	if v := strVal(props.SourceAddressPrefix); v != "" {
		r.Sources = []string{v}
	} else {
		r.Sources = derefAll(props.SourceAddressPrefixes)
	}
	if v := strVal(props.DestinationPortRange); v != "" {
		r.Ports = []string{v}
	} else {
		r.Ports = derefAll(props.DestinationPortRanges)
	}
	return r
}

// applyGroup copies source specifiers from group onto the matching rules of
// nsg and removes rules that group no longer contains. Every other property
// of the NSG is left as read.
func applyGroup(nsg *armnetwork.SecurityGroup, group models.NetworkRuleGroup) {
	if nsg.Properties == nil {
		return
	}
	kept := make([]*armnetwork.SecurityRule, 0, len(nsg.Properties.SecurityRules))
	for _, sr := range nsg.Properties.SecurityRules {
		if sr == nil || sr.Name == nil {
			continue
		}
		idx := group.RuleIndex(*sr.Name)
		if idx < 0 {
			continue
		}
		if sr.Properties != nil {
			setSources(sr.Properties, group.Rules[idx].Sources)
		}
		kept = append(kept, sr)
	}
	nsg.Properties.SecurityRules = kept
}

// setSources writes sources using the singular field for one entry and the
// plural field otherwise. ARM rejects a rule that sets both.
func setSources(props *armnetwork.SecurityRulePropertiesFormat, sources []string) {
	if len(sources) == 1 {
		props.SourceAddressPrefix = to.Ptr(sources[0])
		props.SourceAddressPrefixes = nil
		return
	}
	props.SourceAddressPrefix = nil
	props.SourceAddressPrefixes = to.SliceOfPtrs(sources...)
}

func accountFromARM(subscriptionID string, acct *armstorage.Account) models.StorageAccountRef {
	ref := models.StorageAccountRef{
		ID:            strVal(acct.ID),
		Name:          *acct.Name,
		AccountID:     subscriptionID,
		ResourceGroup: resourceGroupOf(acct.ID),
		Location:      strVal(acct.Location),
		// Accounts created before the property existed allow public access.
		AllowPublicAccess: true,
	}
	if acct.Properties != nil && acct.Properties.AllowBlobPublicAccess != nil {
		ref.AllowPublicAccess = *acct.Properties.AllowBlobPublicAccess
	}
	return ref
}

func containerFromARM(account models.StorageAccountRef, item *armstorage.ListContainerItem) models.StorageContainer {
	c := models.StorageContainer{
		Account:          account.Name,
		Name:             *item.Name,
		PublicAccess:     models.PublicAccessOff,
		AccountID:        account.AccountID,
		ResourceGroup:    account.ResourceGroup,
		StorageAccountID: account.ID,
		Location:         account.Location,
	}
	if !account.AllowPublicAccess {
		return c
	}
	if item.Properties != nil && item.Properties.PublicAccess != nil {
		c.PublicAccess = models.ParsePublicAccessLevel(string(*item.Properties.PublicAccess))
	}
	return c
}

func derefAll(in []*string) []string {
	var out []string
	for _, p := range in {
		if p == nil {
			continue
		}
		if v := strings.TrimSpace(*p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func strVal(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func strOr(p *string, def string) string {
	if p == nil || *p == "" {
		return def
	}
	return *p
}
