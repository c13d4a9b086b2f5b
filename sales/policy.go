package sales

// =============================================================================
// ROLL-UP POLICIES - pure functions
// =============================================================================

// ResolveLineProductionStatus derives a line's status from its orders.
//
//	no orders, manual mode -> pending
//	no orders, otherwise   -> done (stock covered everything)
//	none finished          -> pending
//	some finished          -> in_progress
//	all finished           -> done
func ResolveLineProductionStatus(mode ProductionMode, total, finished int) ProductionStatus {
	if total == 0 {
		if mode == ModeManual {
			return ProductionPending
		}
		return ProductionDone
	}
	switch {
	case finished == 0:
		return ProductionPending
	case finished < total:
		return ProductionInProgress
	default:
		return ProductionDone
	}
}

// ResolveSalesOrderStatus derives a sales order's status from its lines.
// Returns ok=false when the status must stay as it is.
func ResolveSalesOrderStatus(current Status, lines []ProductionStatus) (next Status, ok bool) {
	if current.IsTerminal() || len(lines) == 0 {
		return "", false
	}

	next = StatusReady
	for _, s := range lines {
		if s != ProductionDone {
			next = StatusProduction
			break
		}
	}
	if next == current {
		return "", false
	}
	return next, true
}
