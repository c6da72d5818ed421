package awsutil

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"go.uber.org/zap"

	"github.com/emaland/cmp/internal/cloud"
)

// ListAllInstanceTypes pages through DescribeInstanceTypes in the default
// region and returns the types that pass filter.
func (c *Client) ListAllInstanceTypes(ctx context.Context, filter cloud.CatalogFilter) ([]cloud.InstanceType, error) {
	results := []cloud.InstanceType{}
	fetched := 0

	paginator := ec2.NewDescribeInstanceTypesPaginator(c.ec2(""), &ec2.DescribeInstanceTypesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("describing instance types: %w", err)
		}
		fetched += len(page.InstanceTypes)
		for _, it := range page.InstanceTypes {
			t := toInstanceType(it)
			if filter.Match(t) {
				results = append(results, t)
			}
		}
	}
	if fetched == 0 {
		c.log.Warn("DescribeInstanceTypes returned no instance types",
			zap.String("region_id", c.cfg.Region),
			zap.Int("min_cpu", filter.MinCPU),
			zap.Float64("min_memory", filter.MinMemory))
	}
	return results, nil
}

// DescribeInstanceTypes looks up the named instance types, 100 per call.
// Unknown names fail the whole batch.
func (c *Client) DescribeInstanceTypes(ctx context.Context, names []string) ([]cloud.InstanceType, error) {
	infos := make([]cloud.InstanceType, 0, len(names))
	for i := 0; i < len(names); i += describeBatch {
		end := i + describeBatch
		if end > len(names) {
			end = len(names)
		}
		typeNames := make([]types.InstanceType, 0, end-i)
		for _, n := range names[i:end] {
			typeNames = append(typeNames, types.InstanceType(n))
		}
		result, err := c.ec2("").DescribeInstanceTypes(ctx, &ec2.DescribeInstanceTypesInput{
			InstanceTypes: typeNames,
		})
		if err != nil {
			return nil, fmt.Errorf("describing instance types: %w", err)
		}
		for _, it := range result.InstanceTypes {
			infos = append(infos, toInstanceType(it))
		}
	}
	return infos, nil
}

const describeBatch = 100

func toInstanceType(it types.InstanceTypeInfo) cloud.InstanceType {
	name := string(it.InstanceType)
	family := name
	if i := strings.Index(name, "."); i > 0 {
		family = name[:i]
	}
	t := cloud.InstanceType{
		InstanceTypeID: name,
		InstanceFamily: family,
		Generation:     cloud.GenerationOf(family),
		IsIOOptimized:  true,
	}
	if it.VCpuInfo != nil {
		t.CPUCoreCount = int(aws.ToInt32(it.VCpuInfo.DefaultVCpus))
	}
	if it.MemoryInfo != nil {
		t.MemorySize = float64(aws.ToInt64(it.MemoryInfo.SizeInMiB)) / 1024.0
	}
	if it.ProcessorInfo != nil && len(it.ProcessorInfo.SupportedArchitectures) > 0 {
		t.Architecture = string(it.ProcessorInfo.SupportedArchitectures[0])
	}
	if it.GpuInfo != nil && len(it.GpuInfo.Gpus) > 0 {
		var specs []string
		for _, g := range it.GpuInfo.Gpus {
			t.GPUAmount += int(aws.ToInt32(g.Count))
			specs = append(specs, strings.TrimSpace(aws.ToString(g.Manufacturer)+" "+aws.ToString(g.Name)))
		}
		t.GPUSpec = strings.Join(specs, ",")
		if it.GpuInfo.TotalGpuMemoryInMiB != nil {
			mem := float64(*it.GpuInfo.TotalGpuMemoryInMiB) / 1024.0
			t.GPUMemory = &mem
		}
	}
	if it.InstanceStorageInfo != nil {
		amount := 0
		for _, d := range it.InstanceStorageInfo.Disks {
			amount += int(aws.ToInt32(d.Count))
		}
		capacity := int(aws.ToInt64(it.InstanceStorageInfo.TotalSizeInGB))
		t.LocalStorageAmount = &amount
		t.LocalStorageCapacity = &capacity
	}
	if it.NetworkInfo != nil && it.NetworkInfo.NetworkPerformance != nil {
		t.NetworkPerformance = *it.NetworkInfo.NetworkPerformance
	}
	if it.EbsInfo != nil && it.EbsInfo.EbsOptimizedSupport == types.EbsOptimizedSupportUnsupported {
		t.IsIOOptimized = false
	}
	return t
}

// ListAvailableInstanceTypes reports the instance types offered in the zone,
// or in the region when no zone is given. EC2 has no stock signal, so
// every offering is reported as available with stock.
func (c *Client) ListAvailableInstanceTypes(ctx context.Context, q cloud.AvailabilityQuery) ([]cloud.Availability, error) {
	input := &ec2.DescribeInstanceTypeOfferingsInput{
		LocationType: types.LocationTypeRegion,
		Filters: []types.Filter{
			{Name: aws.String("location"), Values: []string{q.RegionID}},
		},
	}
	if q.ZoneID != "" {
		input.LocationType = types.LocationTypeAvailabilityZone
		input.Filters[0].Values = []string{q.ZoneID}
	}

	results := []cloud.Availability{}
	seen := map[string]bool{}
	paginator := ec2.NewDescribeInstanceTypeOfferingsPaginator(c.ec2(q.RegionID), input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("describing instance type offerings: %w", err)
		}
		for _, o := range page.InstanceTypeOfferings {
			id := string(o.InstanceType)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			results = append(results, cloud.Availability{
				InstanceTypeID: id,
				Status:         cloud.StatusAvailable,
				StatusCategory: cloud.CategoryWithStock,
			})
		}
	}
	return results, nil
}

// ListPricingOptions quotes the lowest current spot price across the
// region's zones. EC2 publishes no on-demand or reserved prices.
func (c *Client) ListPricingOptions(ctx context.Context, q cloud.PriceQuery) (map[string]float64, error) {
	if q.ChargeType != cloud.Spot {
		return nil, fmt.Errorf("aws %s pricing: %w", q.ChargeType, cloud.ErrNotSupported)
	}
	prices, err := FetchSpotPrices(ctx, c.ec2(q.RegionID), []string{q.InstanceType}, "")
	if err != nil {
		return nil, err
	}
	if len(prices) == 0 {
		return nil, fmt.Errorf("no spot price history for %s in %s: %w", q.InstanceType, q.RegionID, cloud.ErrNotSupported)
	}
	return map[string]float64{
		cloud.PriceKeyInstanceType: prices[0].Price,
		cloud.PriceKeySystemDisk:   0,
	}, nil
}

// FetchSpotPrices returns the latest Linux spot price per (type, zone) for
// the last hour, cheapest first.
func FetchSpotPrices(ctx context.Context, client *ec2.Client, instanceTypes []string, azFilter string) ([]SpotPrice, error) {
	var typeNames []types.InstanceType
	for _, it := range instanceTypes {
		typeNames = append(typeNames, types.InstanceType(it))
	}

	type priceKey struct {
		itype string
		az    string
	}
	latest := map[priceKey]types.SpotPrice{}
	startTime := time.Now().Add(-1 * time.Hour)

	// The API accepts about 100 instance types per call.
	batchSize := 100
	for i := 0; i < len(typeNames); i += batchSize {
		end := i + batchSize
		if end > len(typeNames) {
			end = len(typeNames)
		}

		input := &ec2.DescribeSpotPriceHistoryInput{
			InstanceTypes:       typeNames[i:end],
			StartTime:           &startTime,
			ProductDescriptions: []string{"Linux/UNIX"},
		}
		paginator := ec2.NewDescribeSpotPriceHistoryPaginator(client, input)
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return nil, fmt.Errorf("describing spot price history: %w", err)
			}
			for _, sp := range page.SpotPriceHistory {
				az := aws.ToString(sp.AvailabilityZone)
				if azFilter != "" && az != azFilter {
					continue
				}
				k := priceKey{string(sp.InstanceType), az}
				existing, ok := latest[k]
				if !ok || aws.ToTime(sp.Timestamp).After(aws.ToTime(existing.Timestamp)) {
					latest[k] = sp
				}
			}
		}
	}

	results := make([]SpotPrice, 0, len(latest))
	for k, sp := range latest {
		price, err := strconv.ParseFloat(aws.ToString(sp.SpotPrice), 64)
		if err != nil {
			continue
		}
		results = append(results, SpotPrice{InstanceType: k.itype, AZ: k.az, Price: price})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Price < results[j].Price })
	return results, nil
}
