package azure

import (
	"context"
	"errors"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armsubscriptions"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/storage/armstorage"
)

// singlePage returns a pager yielding one page.
func singlePage[T any](page T, err error) *runtime.Pager[T] {
	return runtime.NewPager(runtime.PagingHandler[T]{
		More: func(T) bool { return false },
		Fetcher: func(context.Context, *T) (T, error) {
			return page, err
		},
	})
}

type fakeCred struct{ err error }

func (f fakeCred) GetToken(context.Context, policy.TokenRequestOptions) (azcore.AccessToken, error) {
	if f.err != nil {
		return azcore.AccessToken{}, f.err
	}
	return azcore.AccessToken{Token: "t", ExpiresOn: time.Now().Add(time.Hour)}, nil
}

type fakeSubs struct {
	subs []*armsubscriptions.Subscription
	err  error
}

func (f *fakeSubs) NewListPager(*armsubscriptions.ClientListOptions) *runtime.Pager[armsubscriptions.ClientListResponse] {
	return singlePage(armsubscriptions.ClientListResponse{
		SubscriptionListResult: armsubscriptions.SubscriptionListResult{Value: f.subs},
	}, f.err)
}

type fakeGroups struct {
	groups []*armnetwork.SecurityGroup
	err    error
}

func (f *fakeGroups) NewListAllPager(*armnetwork.SecurityGroupsClientListAllOptions) *runtime.Pager[armnetwork.SecurityGroupsClientListAllResponse] {
	return singlePage(armnetwork.SecurityGroupsClientListAllResponse{
		SecurityGroupListResult: armnetwork.SecurityGroupListResult{Value: f.groups},
	}, f.err)
}

func (f *fakeGroups) Get(_ context.Context, _, name string, _ *armnetwork.SecurityGroupsClientGetOptions) (armnetwork.SecurityGroupsClientGetResponse, error) {
	for _, g := range f.groups {
		if *g.Name == name {
			return armnetwork.SecurityGroupsClientGetResponse{SecurityGroup: *g}, nil
		}
	}
	return armnetwork.SecurityGroupsClientGetResponse{}, errors.New("not found")
}

type fakeWriter struct {
	written []armnetwork.SecurityGroup
	deleted []string
	err     error
}

func (f *fakeWriter) CreateOrUpdate(_ context.Context, _, _ string, g armnetwork.SecurityGroup) error {
	if f.err != nil {
		return f.err
	}
	f.written = append(f.written, g)
	return nil
}

func (f *fakeWriter) DeleteRule(_ context.Context, _, nsg, rule string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, nsg+"/"+rule)
	return nil
}

type fakeAccounts struct {
	accounts  []*armstorage.Account
	updates   map[string]bool
	sasParams []armstorage.ServiceSasParameters
	sasToken  string
	updateErr error
}

func (f *fakeAccounts) NewListPager(*armstorage.AccountsClientListOptions) *runtime.Pager[armstorage.AccountsClientListResponse] {
	return singlePage(armstorage.AccountsClientListResponse{
		AccountListResult: armstorage.AccountListResult{Value: f.accounts},
	}, nil)
}

func (f *fakeAccounts) Update(_ context.Context, _, name string, p armstorage.AccountUpdateParameters, _ *armstorage.AccountsClientUpdateOptions) (armstorage.AccountsClientUpdateResponse, error) {
	if f.updateErr != nil {
		return armstorage.AccountsClientUpdateResponse{}, f.updateErr
	}
	if f.updates == nil {
		f.updates = make(map[string]bool)
	}
	f.updates[name] = *p.Properties.AllowBlobPublicAccess
	return armstorage.AccountsClientUpdateResponse{}, nil
}

func (f *fakeAccounts) ListServiceSAS(_ context.Context, _, _ string, p armstorage.ServiceSasParameters, _ *armstorage.AccountsClientListServiceSASOptions) (armstorage.AccountsClientListServiceSASResponse, error) {
	f.sasParams = append(f.sasParams, p)
	return armstorage.AccountsClientListServiceSASResponse{
		ListServiceSasResponse: armstorage.ListServiceSasResponse{ServiceSasToken: to.Ptr(f.sasToken)},
	}, nil
}

type fakeContainers struct {
	byAccount map[string][]*armstorage.ListContainerItem
}

func (f *fakeContainers) NewListPager(_, account string, _ *armstorage.BlobContainersClientListOptions) *runtime.Pager[armstorage.BlobContainersClientListResponse] {
	return singlePage(armstorage.BlobContainersClientListResponse{
		ListContainerItems: armstorage.ListContainerItems{Value: f.byAccount[account]},
	}, nil)
}

// testProvider wires a Provider to in-memory fakes.
type testProvider struct {
	*Provider
	subs       *fakeSubs
	groups     *fakeGroups
	writer     *fakeWriter
	accounts   *fakeAccounts
	containers *fakeContainers
	built      []string
}

func newTestProvider(credErr error) *testProvider {
	tp := &testProvider{
		subs:       &fakeSubs{},
		groups:     &fakeGroups{},
		writer:     &fakeWriter{},
		accounts:   &fakeAccounts{sasToken: "sv=2022&sig=abc"},
		containers: &fakeContainers{byAccount: map[string][]*armstorage.ListContainerItem{}},
	}
	tp.Provider = newProviderWithFactories(Options{TenantID: "tenant-1"}, nil,
		func(Options) (azcore.TokenCredential, error) { return fakeCred{err: credErr}, nil },
		func(azcore.TokenCredential) (subscriptionsAPI, error) { return tp.subs, nil },
		func(sub string, _ azcore.TokenCredential) (*clientSet, error) {
			tp.built = append(tp.built, sub)
			return &clientSet{Groups: tp.groups, Writer: tp.writer, Accounts: tp.accounts, Containers: tp.containers}, nil
		},
		func(context.Context, azcore.TokenCredential) (string, error) { return "Contoso", nil },
	)
	return tp
}

func nsgID(sub, rg, name string) *string {
	return to.Ptr("/subscriptions/" + sub + "/resourceGroups/" + rg + "/providers/Microsoft.Network/networkSecurityGroups/" + name)
}

func secRule(name, source, port string) *armnetwork.SecurityRule {
	return &armnetwork.SecurityRule{
		Name: to.Ptr(name),
		Properties: &armnetwork.SecurityRulePropertiesFormat{
			Direction:            to.Ptr(armnetwork.SecurityRuleDirectionInbound),
			Access:               to.Ptr(armnetwork.SecurityRuleAccessAllow),
			Protocol:             to.Ptr(armnetwork.SecurityRuleProtocolTCP),
			Priority:             to.Ptr[int32](100),
			SourceAddressPrefix:  to.Ptr(source),
			DestinationPortRange: to.Ptr(port),
		},
	}
}
