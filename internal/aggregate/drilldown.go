package aggregate

import "allocation-dashboard/internal/models"

// ProductsAtLocation sums units per product for one location, largest first.
func ProductsAtLocation(records []models.Record, location string) []models.GroupTotal {
	subset := Filter(records, func(r models.Record) bool { return r.LocationID == location })
	return Select(GroupBySum(subset, ByProduct, Units), Descending, Unbounded)
}

// LocationsForProduct sums units per location for one product, largest first.
func LocationsForProduct(records []models.Record, product string) []models.GroupTotal {
	subset := Filter(records, func(r models.Record) bool { return r.ProductID == product })
	return Select(GroupBySum(subset, ByLocation, Units), Descending, Unbounded)
}
