// Package entities registers the five entity kinds with the core registry.
// Import this package to ensure all entities are registered.
package entities

// Each entity file uses init() to register its definition. Order fixes the
// stage sequence: a kind is always loaded after the kinds it references.
const (
	orderUsers = iota + 1
	orderRestaurants
	orderMenuItems
	orderOrders
	orderReviews
)
