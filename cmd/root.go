package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/emaland/cmp/internal/cloud"
	"github.com/emaland/cmp/internal/cloud/aliyun"
	"github.com/emaland/cmp/internal/cloud/awsutil"
	cmpconfig "github.com/emaland/cmp/internal/config"
	"github.com/emaland/cmp/internal/instancetype"
	"github.com/emaland/cmp/internal/inventory"
	"github.com/emaland/cmp/internal/logger"
	"github.com/emaland/cmp/internal/store"
)

var (
	cfg cmpconfig.Config
	log *zap.Logger

	dbPathOverride   string
	logLevelOverride string
)

// vendors holds the adapter factory of every supported cloud.
var vendors = map[string]func(*zap.Logger) cloud.Factory{
	"aliyun": aliyun.Factory,
	"aws":    awsutil.Factory,
}

const credentialKeyGuidance = `No credential_key configured. Provider secrets are encrypted at rest.

  cmp keygen                           Print a new key
  add "credential_key": "<key>"        to ~/.config/cmp/default.json (or $CMP_CONFIG)

Several comma separated keys may be given; the first encrypts, all decrypt.`

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "cmp",
		Short: "Multi-cloud instance type inventory and pricing",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = cmpconfig.LoadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("db") {
				cfg.DBPath = dbPathOverride
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevelOverride
			}

			lc, err := logger.Parse(cfg.LogFormat, cfg.LogLevel)
			if err != nil {
				return err
			}
			log, err = lc.New(os.Stderr)
			return err
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&dbPathOverride, "db", "", "SQLite database path")
	root.PersistentFlags().StringVar(&logLevelOverride, "log-level", "", "Log level: debug, info, warn or error")

	root.AddCommand(
		newServeCmd(),
		newSyncCmd(),
		newSearchCmd(),
		newPricesCmd(),
		newProviderCmd(),
		newRegionsCmd(),
		newZonesCmd(),
		newVPCsCmd(),
		newVSwitchesCmd(),
		newSecurityGroupsCmd(),
		newImagesCmd(),
		newGroupCmd(),
		newKeygenCmd(),
	)
	return root
}

func Execute() {
	if err := NewRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// app is the wired backend shared by the commands that touch the store.
type app struct {
	store         *store.SqlStore
	providers     *store.Providers
	registry      *cloud.Registry
	instanceTypes *instancetype.Service
	providerSvc   *inventory.ProviderService
	regions       *inventory.RegionService
	networks      *inventory.NetworkService
	groups        *inventory.GroupService
}

func openApp(ctx context.Context) (*app, error) {
	if cfg.CredentialKey == "" {
		fmt.Fprintln(os.Stderr, credentialKeyGuidance)
		return nil, fmt.Errorf("credential_key is not set")
	}
	cipher, err := store.NewCipher(cfg.CredentialKey)
	if err != nil {
		return nil, fmt.Errorf("credential_key: %w", err)
	}

	path := cfg.ResolveDBPath()
	if path != store.InmemPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	s, err := store.Open(ctx, path, log)
	if err != nil {
		return nil, err
	}

	registry := cloud.NewRegistry(cfg.ClientTTL.Std(), log)
	for name, factory := range vendors {
		registry.Register(name, factory(log.With(zap.String("vendor", name))))
	}

	providers := store.NewProviders(s, cipher)
	return &app{
		store:     s,
		providers: providers,
		registry:  registry,
		instanceTypes: instancetype.NewService(log, providers, store.NewInstanceTypes(s), registry, instancetype.PricingConfig{
			Workers: cfg.PriceWorkers,
			Timeout: cfg.PriceTimeout.Std(),
			Retries: cfg.PriceRetries,
			Backoff: cfg.PriceBackoff.Std(),
		}),
		providerSvc: inventory.NewProviderService(log, providers, registry),
		regions:     inventory.NewRegionService(log, providers, store.NewRegions(s), registry),
		networks:    inventory.NewNetworkService(log, providers, store.NewNetworks(s), registry),
		groups:      inventory.NewGroupService(log, store.NewResourceGroups(s)),
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func providerOrDefault(code string) string {
	if code != "" {
		return code
	}
	return cfg.DefaultProvider
}
