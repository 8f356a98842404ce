package domain

// AllocationLine is one warehouse's contribution to an allocation plan
type AllocationLine struct {
	WarehouseID string `json:"warehouseId"`
	Quantity    int    `json:"quantity"`
}

// AllocationPlan is an ordered set of per-warehouse quantities whose sum
// equals the required quantity. Plans are advisory: the stock they reference
// may be consumed by another caller before it is reserved.
type AllocationPlan struct {
	ProductID        string           `json:"productId"`
	RequiredQuantity int              `json:"requiredQuantity"`
	Lines            []AllocationLine `json:"lines"`
}

// TotalQuantity sums the planned lines
func (p *AllocationPlan) TotalQuantity() int {
	total := 0
	for _, line := range p.Lines {
		total += line.Quantity
	}
	return total
}
