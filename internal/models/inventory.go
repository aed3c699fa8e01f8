package models

// Inventory is the read-only snapshot taken once per run from the inventory
// provider. Slices preserve discovery order.
type Inventory struct {
	Accounts        []AccountRef        `json:"accounts"         yaml:"accounts"`
	RuleGroups      []NetworkRuleGroup  `json:"rule_groups"      yaml:"rule_groups"`
	StorageAccounts []StorageAccountRef `json:"storage_accounts" yaml:"storage_accounts"`
	Containers      []StorageContainer  `json:"containers"       yaml:"containers"`
}

// AllRules flattens every rule of every group in discovery order.
func (inv *Inventory) AllRules() []NetworkRule {
	var out []NetworkRule
	for _, g := range inv.RuleGroups {
		out = append(out, g.Rules...)
	}
	return out
}
