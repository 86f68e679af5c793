package update

import "context"

// Gateway is the capability every platform offers: one store query and the
// store page URL. A host picks one implementation at startup.
type Gateway interface {
	Platform() Platform
	// LocalVersion is the identifier the store version is compared to: the
	// human-readable version on iOS, the build number on Android.
	LocalVersion() string
	FetchLatest(ctx context.Context, opts FetchOptions) (*StoreUpdateInfo, error)
	ResolveStoreURL(ctx context.Context, country string) (string, error)
}

// FlowGateway is implemented by platforms that drive an install flow.
type FlowGateway interface {
	Gateway
	BeginUpdateFlow(ctx context.Context, t UpdateType) error
	CompleteUpdateFlow(ctx context.Context) error
	AddListener(fn func(InstallState)) Subscription
}

// Subscription removes a listener. Remove is idempotent.
type Subscription interface {
	Remove()
}

type noopSubscription struct{}

func (noopSubscription) Remove() {}

// NoopSubscription returns a Subscription that does nothing.
func NoopSubscription() Subscription { return noopSubscription{} }
