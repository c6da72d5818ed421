package instancetype

import (
	"github.com/shopspring/decimal"

	"github.com/emaland/cmp/internal/cloud"
)

// Item is one priced search result. Price is the live quote, 0 when the
// lookup failed; PriceStatus tells the two apart.
type Item struct {
	cloud.InstanceType
	ReferencePrice decimal.NullDecimal `json:"reference_price"`
	Price          float64             `json:"price"`
	PriceStatus    string              `json:"price_status"`
	Status         string              `json:"status"`
	StatusCategory string              `json:"status_category"`
	ZoneID         string              `json:"zone_id"`
}

// Page is a search response.
type Page struct {
	Total    int    `json:"total"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
	Items    []Item `json:"items"`
}

// pageBounds returns the half open range of page within total items.
// Pages past the end, however large, yield an empty range at total.
func pageBounds(total, page, pageSize int) (start, end int) {
	if pageSize <= 0 || page < 1 || page-1 > total/pageSize {
		return total, total
	}
	start = (page - 1) * pageSize
	if start > total {
		start = total
	}
	end = start + pageSize
	if end > total {
		end = total
	}
	return start, end
}

func assemble(paged []Candidate, prices map[string]PriceOutcome, zoneID string) []Item {
	items := make([]Item, 0, len(paged))
	for _, c := range paged {
		o, ok := prices[c.InstanceTypeID]
		if !ok {
			o = PriceOutcome{Err: errNotPriced}
		}
		items = append(items, Item{
			InstanceType:   c.InstanceType,
			ReferencePrice: c.InstanceType.Price,
			Price:          o.Price,
			PriceStatus:    o.Status(),
			Status:         c.Status,
			StatusCategory: c.StatusCategory,
			ZoneID:         zoneID,
		})
	}
	return items
}
