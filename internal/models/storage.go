package models

import (
	"strings"
	"time"
)

// PublicAccessLevel controls whether anonymous clients may read a container.
type PublicAccessLevel string

const (
	PublicAccessOff       PublicAccessLevel = "off"
	PublicAccessBlob      PublicAccessLevel = "blob"
	PublicAccessContainer PublicAccessLevel = "container"
)

// ParsePublicAccessLevel normalises provider spellings ("None", "Blob",
// "Container", "") to a PublicAccessLevel. Unknown values map to off.
func ParsePublicAccessLevel(s string) PublicAccessLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "blob", "read-blob":
		return PublicAccessBlob
	case "container", "read-container":
		return PublicAccessContainer
	default:
		return PublicAccessOff
	}
}

// StorageAccountRef identifies a storage account (Azure) or bucket (S3) that
// owns one or more containers.
type StorageAccountRef struct {
	ID                string `json:"id"                  yaml:"id"`
	Name              string `json:"name"                yaml:"name"`
	AccountID         string `json:"account_id"          yaml:"account_id"`
	ResourceGroup     string `json:"resource_group"      yaml:"resource_group"`
	Location          string `json:"location,omitempty"  yaml:"location,omitempty"`
	AllowPublicAccess bool   `json:"allow_public_access" yaml:"allow_public_access"`
}

// StorageContainer is an object-storage container scoped to a storage account.
// AccountID is the owning subscription/account; StorageAccountID is the
// provider resource ID of the owning storage account.
type StorageContainer struct {
	Account          string            `json:"account"            yaml:"account"`
	Name             string            `json:"name"               yaml:"name"`
	PublicAccess     PublicAccessLevel `json:"public_access"      yaml:"public_access"`
	AccountID        string            `json:"account_id"         yaml:"account_id"`
	ResourceGroup    string            `json:"resource_group"     yaml:"resource_group"`
	StorageAccountID string            `json:"storage_account_id" yaml:"storage_account_id"`
	Location         string            `json:"location,omitempty" yaml:"location,omitempty"`
}

// IsPublic reports whether anonymous access is enabled on the container.
func (c StorageContainer) IsPublic() bool {
	return c.PublicAccess != "" && c.PublicAccess != PublicAccessOff
}

// StorageAccountRef returns the reference of the account that owns c.
func (c StorageContainer) StorageAccountRef() StorageAccountRef {
	return StorageAccountRef{
		ID:            c.StorageAccountID,
		Name:          c.Account,
		AccountID:     c.AccountID,
		ResourceGroup: c.ResourceGroup,
		Location:      c.Location,
	}
}

// AccessDescriptor is an issued read-only, time-limited delegated access
// token for a single container.
type AccessDescriptor struct {
	Account   string    `json:"account"`
	Container string    `json:"container"`
	URL       string    `json:"url"`
	Expiry    time.Time `json:"expiry"`
}
