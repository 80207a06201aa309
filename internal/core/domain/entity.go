package domain

// EntityKind names a finite reference domain used to complete distributions.
type EntityKind string

const (
	EntityZone        EntityKind = "zone"
	EntityCustomer    EntityKind = "customer"
	EntityTechnician  EntityKind = "technician"
	EntityProductType EntityKind = "product_type"
	EntityAsset       EntityKind = "asset"
)

func (k EntityKind) IsValid() bool {
	switch k {
	case EntityZone, EntityCustomer, EntityTechnician, EntityProductType, EntityAsset:
		return true
	}
	return false
}

// DomainEntity is one member of a reference domain. ZoneID is set for
// entities that belong to a zone (customers, technicians, assets).
type DomainEntity struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	ZoneID string `json:"zoneId,omitempty"`
}

// EntityIndex maps entity IDs to display names.
type EntityIndex map[string]DomainEntity

// IndexEntities builds a lookup over entities.
func IndexEntities(entities []DomainEntity) EntityIndex {
	idx := make(EntityIndex, len(entities))
	for _, e := range entities {
		idx[e.ID] = e
	}
	return idx
}

// Name returns the display name for id, falling back to the id itself.
func (idx EntityIndex) Name(id string) string {
	if e, ok := idx[id]; ok && e.Name != "" {
		return e.Name
	}
	return id
}
