package azure

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armsubscriptions"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/storage/armstorage"
	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"
	"github.com/microsoftgraph/msgraph-sdk-go/organization"
)

// ---------------------------------------------------------------------------
// Per-service client interfaces
//
// Each interface covers only the operations this provider uses. List and
// synchronous calls keep the SDK signatures; long-running writes are hidden
// behind groupWriter so tests never need an SDK poller.
// ---------------------------------------------------------------------------

type subscriptionsAPI interface {
	NewListPager(options *armsubscriptions.ClientListOptions) *runtime.Pager[armsubscriptions.ClientListResponse]
}

type securityGroupsAPI interface {
	NewListAllPager(options *armnetwork.SecurityGroupsClientListAllOptions) *runtime.Pager[armnetwork.SecurityGroupsClientListAllResponse]
	Get(ctx context.Context, resourceGroupName, networkSecurityGroupName string, options *armnetwork.SecurityGroupsClientGetOptions) (armnetwork.SecurityGroupsClientGetResponse, error)
}

// groupWriter performs the NSG writes, waiting for each operation to finish.
type groupWriter interface {
	CreateOrUpdate(ctx context.Context, resourceGroupName, nsgName string, group armnetwork.SecurityGroup) error
	DeleteRule(ctx context.Context, resourceGroupName, nsgName, ruleName string) error
}

type storageAccountsAPI interface {
	NewListPager(options *armstorage.AccountsClientListOptions) *runtime.Pager[armstorage.AccountsClientListResponse]
	Update(ctx context.Context, resourceGroupName, accountName string, parameters armstorage.AccountUpdateParameters, options *armstorage.AccountsClientUpdateOptions) (armstorage.AccountsClientUpdateResponse, error)
	ListServiceSAS(ctx context.Context, resourceGroupName, accountName string, parameters armstorage.ServiceSasParameters, options *armstorage.AccountsClientListServiceSASOptions) (armstorage.AccountsClientListServiceSASResponse, error)
}

type blobContainersAPI interface {
	NewListPager(resourceGroupName, accountName string, options *armstorage.BlobContainersClientListOptions) *runtime.Pager[armstorage.BlobContainersClientListResponse]
}

// tenantLookup returns the display name of the signed-in tenant.
type tenantLookup func(ctx context.Context, cred azcore.TokenCredential) (string, error)

// ---------------------------------------------------------------------------
// ClientSet and factories
// ---------------------------------------------------------------------------

// clientSet holds subscription-scoped clients. All fields are interfaces so
// tests can substitute fakes.
type clientSet struct {
	Groups     securityGroupsAPI
	Writer     groupWriter
	Accounts   storageAccountsAPI
	Containers blobContainersAPI
}

// clientFactory builds the clients for one subscription.
type clientFactory func(subscriptionID string, cred azcore.TokenCredential) (*clientSet, error)

// subscriptionsFactory builds the tenant-level subscriptions client.
type subscriptionsFactory func(cred azcore.TokenCredential) (subscriptionsAPI, error)

func newDefaultClientSet(subscriptionID string, cred azcore.TokenCredential) (*clientSet, error) {
	groups, err := armnetwork.NewSecurityGroupsClient(subscriptionID, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create security groups client: %w", err)
	}
	rules, err := armnetwork.NewSecurityRulesClient(subscriptionID, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create security rules client: %w", err)
	}
	accounts, err := armstorage.NewAccountsClient(subscriptionID, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create storage accounts client: %w", err)
	}
	containers, err := armstorage.NewBlobContainersClient(subscriptionID, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create blob containers client: %w", err)
	}
	return &clientSet{
		Groups:     groups,
		Writer:     &lroWriter{groups: groups, rules: rules},
		Accounts:   accounts,
		Containers: containers,
	}, nil
}

func newDefaultSubscriptions(cred azcore.TokenCredential) (subscriptionsAPI, error) {
	client, err := armsubscriptions.NewClient(cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create subscriptions client: %w", err)
	}
	return client, nil
}

// lroWriter drives the SDK pollers to completion.
type lroWriter struct {
	groups *armnetwork.SecurityGroupsClient
	rules  *armnetwork.SecurityRulesClient
}

func (w *lroWriter) CreateOrUpdate(ctx context.Context, rg, name string, group armnetwork.SecurityGroup) error {
	poller, err := w.groups.BeginCreateOrUpdate(ctx, rg, name, group, nil)
	if err != nil {
		return err
	}
	_, err = poller.PollUntilDone(ctx, nil)
	return err
}

func (w *lroWriter) DeleteRule(ctx context.Context, rg, nsg, rule string) error {
	poller, err := w.rules.BeginDelete(ctx, rg, nsg, rule, nil)
	if err != nil {
		return err
	}
	_, err = poller.PollUntilDone(ctx, nil)
	return err
}

// graphTenantName reads the organization display name from Microsoft Graph.
func graphTenantName(ctx context.Context, cred azcore.TokenCredential) (string, error) {
	graph, err := msgraphsdk.NewGraphServiceClientWithCredentials(cred, nil)
	if err != nil {
		return "", fmt.Errorf("create graph client: %w", err)
	}
	org, err := graph.Organization().Get(ctx, &organization.OrganizationRequestBuilderGetRequestConfiguration{})
	if err != nil {
		return "", fmt.Errorf("get organization: %w", err)
	}
	if values := org.GetValue(); len(values) > 0 {
		if name := values[0].GetDisplayName(); name != nil {
			return *name, nil
		}
	}
	return "", fmt.Errorf("organization has no display name")
}
