package guests

// Stats aggregates people across guest views without double counting units
// that were split into several cards.
type Stats struct {
	Units               int              `json:"units"`
	Confirmed           int              `json:"confirmed"`
	Pending             int              `json:"pending"`
	Deleted             int              `json:"deleted"`
	ByCategory          map[Category]int `json:"by_category"`
	TotalWithCompanions int              `json:"total_with_companions"`
}

// ComputeStats counts people by status, and live (not deleted) people by the
// category of their unit.
func ComputeStats(views []GuestView) Stats {
	stats := Stats{ByCategory: make(map[Category]int)}
	units := make(map[int64]struct{})

	for _, v := range views {
		units[v.UnitID] = struct{}{}
		for _, p := range v.Members() {
			switch p.Status() {
			case StatusConfirmed:
				stats.Confirmed++
			case StatusPending:
				stats.Pending++
			case StatusDeleted:
				stats.Deleted++
				continue
			}
			stats.ByCategory[v.Category]++
		}
	}

	stats.Units = len(units)
	stats.TotalWithCompanions = stats.Confirmed + stats.Pending
	return stats
}

// FilterByStatus returns the views holding the given status.
func FilterByStatus(views []GuestView, status Status) []GuestView {
	out := make([]GuestView, 0)
	for _, v := range views {
		if v.Status == status {
			out = append(out, v)
		}
	}
	return out
}
