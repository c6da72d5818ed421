// Package cloud defines the vendor adapter contract and the canonical
// inventory types every adapter normalizes into.
package cloud

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotSupported is returned for operations a vendor cannot serve.
	// It is permanent: retrying does not help.
	ErrNotSupported = errors.New("operation not supported by vendor")

	// ErrUnsupportedDiskCategory marks a price quote rejected because of the
	// system disk category.
	ErrUnsupportedDiskCategory = errors.New("unsupported system disk category")
)

// Credentials identify one registered provider account.
type Credentials struct {
	ProviderCode    string
	AccessKeyID     string
	AccessKeySecret string
	Endpoint        string
}

// Adapter is implemented once per cloud vendor. Implementations must be
// safe for concurrent use.
type Adapter interface {
	ListAllInstanceTypes(ctx context.Context, filter CatalogFilter) ([]InstanceType, error)
	DescribeInstanceTypes(ctx context.Context, ids []string) ([]InstanceType, error)
	ListAvailableInstanceTypes(ctx context.Context, q AvailabilityQuery) ([]Availability, error)
	ListPricingOptions(ctx context.Context, q PriceQuery) (map[string]float64, error)
	ListRegions(ctx context.Context) ([]Region, error)
	ListZones(ctx context.Context, regionID string) ([]Zone, error)
	ListVPCs(ctx context.Context, regionID string) ([]VPC, error)
	ListVSwitches(ctx context.Context, regionID, vpcID string) ([]VSwitch, error)
	ListSecurityGroups(ctx context.Context, regionID, vpcID string) ([]SecurityGroup, error)
	ListImages(ctx context.Context, q ImageQuery) ([]Image, error)
	Validate(ctx context.Context) error
}

// Factory builds an adapter from credentials.
type Factory func(ctx context.Context, creds Credentials) (Adapter, error)

// UnsupportedVendorError is returned for provider codes with no factory.
type UnsupportedVendorError struct {
	ProviderCode string
}

func (e *UnsupportedVendorError) Error() string {
	return fmt.Sprintf("unsupported cloud provider: %s", e.ProviderCode)
}
