package logistics

// ItemMatches reports whether stack is a non-empty item stack of the item the filter accepts.
func ItemMatches(stack, filter Resource) bool {
	return stack.IsItem() && filter.Kind == KindItem && stack.SameKind(filter)
}

// FluidMatches compares fluid kinds only; amounts bound the transfer, not eligibility.
func FluidMatches(fluid, filter Resource) bool {
	return fluid.Kind == KindFluid && fluid.SameKind(filter)
}

func Matches(r, filter Resource) bool {
	switch r.Kind {
	case KindItem:
		return ItemMatches(r, filter)
	case KindFluid:
		return FluidMatches(r, filter)
	}
	return false
}

// MatchesAny reports whether r matches at least one filter entry.
func MatchesAny(r Resource, filters []Resource) bool {
	for _, f := range filters {
		if Matches(r, f) {
			return true
		}
	}
	return false
}
