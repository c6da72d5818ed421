package cloud

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

type registryKey struct {
	providerCode string
	accessKeyID  string
}

type registryEntry struct {
	adapter Adapter
	created time.Time
}

// Registry caches one adapter per (provider code, access key id). Entries
// expire after the configured TTL and are dropped on Invalidate, which
// callers use when credentials rotate.
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
	entries   map[registryKey]registryEntry
	ttl       time.Duration
	log       *zap.Logger

	now func() time.Time
}

func NewRegistry(ttl time.Duration, log *zap.Logger) *Registry {
	return &Registry{
		factories: map[string]Factory{},
		entries:   map[registryKey]registryEntry{},
		ttl:       ttl,
		log:       log,
		now:       time.Now,
	}
}

// Register installs the factory for a vendor name such as "aliyun".
func (r *Registry) Register(vendor string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(vendor)] = f
}

// VendorOf maps a provider code to its vendor name. "aliyun" and
// "aliyun-prod" both map to "aliyun".
func VendorOf(providerCode string) string {
	code := strings.ToLower(providerCode)
	if i := strings.IndexAny(code, "-_"); i > 0 {
		return code[:i]
	}
	return code
}

// Supports reports whether a factory exists for the provider code.
func (r *Registry) Supports(providerCode string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.factories[VendorOf(providerCode)]
	return ok
}

// Get returns the cached adapter for creds, building it on a miss.
func (r *Registry) Get(ctx context.Context, creds Credentials) (Adapter, error) {
	key := registryKey{providerCode: creds.ProviderCode, accessKeyID: creds.AccessKeyID}

	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[key]; ok {
		if r.ttl <= 0 || r.now().Sub(e.created) < r.ttl {
			return e.adapter, nil
		}
		r.log.Debug("Vendor client expired", zap.String("provider_code", creds.ProviderCode))
		delete(r.entries, key)
	}

	f, ok := r.factories[VendorOf(creds.ProviderCode)]
	if !ok {
		return nil, &UnsupportedVendorError{ProviderCode: creds.ProviderCode}
	}
	a, err := f(ctx, creds)
	if err != nil {
		return nil, err
	}
	r.entries[key] = registryEntry{adapter: a, created: r.now()}
	r.log.Debug("Vendor client created", zap.String("provider_code", creds.ProviderCode))
	return a, nil
}

// Invalidate drops every cached adapter for the provider code.
func (r *Registry) Invalidate(providerCode string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k := range r.entries {
		if k.providerCode == providerCode {
			delete(r.entries, k)
		}
	}
}

// Len returns the number of cached adapters.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
