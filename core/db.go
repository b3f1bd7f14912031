package core

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// AllowedOrderings drops the orderings whose Field is not in allowed.
func AllowedOrderings(ordering []DBOrdering, allowed ...string) []DBOrdering {
	if len(ordering) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(allowed))
	for _, fld := range allowed {
		set[fld] = struct{}{}
	}
	kept := make([]DBOrdering, 0, len(ordering))
	for _, ord := range ordering {
		if _, ok := set[ord.Field]; ok {
			kept = append(kept, ord)
		}
	}
	return kept
}
