package logistics

import "fmt"

type Kind uint8

const (
	KindNone Kind = iota
	KindItem
	KindFluid
)

func (k Kind) String() string {
	switch k {
	case KindItem:
		return "ITEM"
	case KindFluid:
		return "FLUID"
	default:
		return "NONE"
	}
}

// Resource is an item stack or a fluid volume. The zero value is empty.
type Resource struct {
	Kind   Kind
	ID     string
	Amount int // item count or fluid millibuckets
}

func Item(id string, count int) Resource { return Resource{Kind: KindItem, ID: id, Amount: count} }

func Fluid(id string, mb int) Resource { return Resource{Kind: KindFluid, ID: id, Amount: mb} }

func Empty() Resource { return Resource{} }

func (r Resource) IsEmpty() bool {
	return r.Kind == KindNone || r.ID == "" || r.Amount <= 0
}

func (r Resource) IsItem() bool { return r.Kind == KindItem && !r.IsEmpty() }

func (r Resource) IsFluid() bool { return r.Kind == KindFluid && !r.IsEmpty() }

// SameKind reports whether r and o name the same item or fluid, ignoring amounts.
func (r Resource) SameKind(o Resource) bool {
	return r.Kind != KindNone && r.Kind == o.Kind && r.ID != "" && r.ID == o.ID
}

func (r Resource) WithAmount(n int) Resource {
	r.Amount = n
	return r
}

func (r Resource) String() string {
	if r.IsEmpty() {
		return "EMPTY"
	}
	if r.Kind == KindFluid {
		return fmt.Sprintf("%s:%dmB", r.ID, r.Amount)
	}
	return fmt.Sprintf("%s x%d", r.ID, r.Amount)
}
