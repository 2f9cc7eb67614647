package deploy

import "fmt"

// =============================================================================
// Structural Validation
// =============================================================================

// validateConfig checks the cross-field rules against the fully merged values
// and override-set. It runs on every construction and every layering, so a
// structurally invalid configuration is rejected before any remote resource
// is reserved. Pure and synchronous; a failure leaves no partially-built
// state behind.
func validateConfig(values map[string]any, overrides map[string]bool) error {
	// Every override must name a recognized option. Capture already enforces
	// this; rechecking here keeps restored and merged configs honest too.
	for name := range overrides {
		if _, known := Lookup(name); !known {
			return NewOptionError(name, "not a recognized deployment option", ErrUnknownOption)
		}
	}

	// Replica provisioning must be driven by something. Both options may carry
	// concrete values simultaneously; only both-null is rejected.
	if values[OptNumReplicas] == nil && values[OptAutoscalingConfig] == nil {
		return NewOptionError(OptNumReplicas, "num_replicas and autoscaling_config cannot both be null", ErrMutualExclusion)
	}

	// A declared bundle must request something.
	bundles, _ := values[OptPlacementGroupBundles].([]ResourceBundle)
	for i, b := range bundles {
		if !bundleHasPositiveQuantity(b) {
			return NewOptionError(OptPlacementGroupBundles,
				fmt.Sprintf("bundle %d must request at least one positive resource quantity", i),
				ErrBundleResources)
		}
	}

	// A placement strategy is meaningless without bundles to place.
	if values[OptPlacementGroupStrategy] != nil && len(bundles) == 0 {
		return NewOptionError(OptPlacementGroupStrategy,
			"placement_group_strategy is set but placement_group_bundles is empty",
			ErrStrategyWithoutBundles)
	}

	return nil
}

func bundleHasPositiveQuantity(b ResourceBundle) bool {
	for _, q := range b {
		if q > 0 {
			return true
		}
	}
	return false
}
