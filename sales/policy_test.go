package sales_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/warp/orderflow/sales"
)

func TestResolveLineProductionStatus(t *testing.T) {
	tests := []struct {
		name     string
		mode     sales.ProductionMode
		total    int
		finished int
		want     sales.ProductionStatus
	}{
		{"covered by stock", sales.ModeAuto, 0, 0, sales.ProductionDone},
		{"forced with nothing to make", sales.ModeForce, 0, 0, sales.ProductionDone},
		{"manual without orders", sales.ModeManual, 0, 0, sales.ProductionPending},
		{"none finished", sales.ModeAuto, 2, 0, sales.ProductionPending},
		{"some finished", sales.ModeAuto, 2, 1, sales.ProductionInProgress},
		{"all finished", sales.ModeAuto, 2, 2, sales.ProductionDone},
		{"manual all finished", sales.ModeManual, 1, 1, sales.ProductionDone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sales.ResolveLineProductionStatus(tt.mode, tt.total, tt.finished))
		})
	}
}

func TestResolveSalesOrderStatus(t *testing.T) {
	done, pending := sales.ProductionDone, sales.ProductionPending

	tests := []struct {
		name    string
		current sales.Status
		lines   []sales.ProductionStatus
		want    sales.Status
		ok      bool
	}{
		{"all done", sales.StatusNew, []sales.ProductionStatus{done, done}, sales.StatusReady, true},
		{"one pending", sales.StatusNew, []sales.ProductionStatus{done, pending}, sales.StatusProduction, true},
		{"already ready", sales.StatusReady, []sales.ProductionStatus{done}, "", false},
		{"ready falls back to production", sales.StatusReady, []sales.ProductionStatus{pending}, sales.StatusProduction, true},
		{"shipped is left alone", sales.StatusShipped, []sales.ProductionStatus{pending}, "", false},
		{"completed is left alone", sales.StatusCompleted, []sales.ProductionStatus{done}, "", false},
		{"cancelled is left alone", sales.StatusCancelled, []sales.ProductionStatus{done}, "", false},
		{"no lines", sales.StatusNew, nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := sales.ResolveSalesOrderStatus(tt.current, tt.lines)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
