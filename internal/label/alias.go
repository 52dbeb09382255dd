// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package label

// Index aliases targeted per module.
const (
	AliasFood = "food_items"
	AliasEcom = "ecom_items"
)

// DefaultModule is assumed for trend rows that carry no module.
const DefaultModule = "food"

// ResolveAlias returns the index alias for module: food_items for food (or
// an empty module), ecom_items for everything else.
func ResolveAlias(module string) string {
	if module == "" || module == DefaultModule {
		return AliasFood
	}
	return AliasEcom
}
