package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		from node
		on   event
		to   node
	}{
		{nodeSupervisor, evRouted, nodeSpecialist},
		{nodeSupervisor, evFinish, nodeTerminate},
		{nodeSupervisor, evYield, nodeEnd},
		{nodeSpecialist, evToolRequests, nodeTool},
		{nodeSpecialist, evAnswered, nodeSupervisor},
		{nodeTool, evResults, nodeSpecialist},
		{nodeTerminate, evTerminated, nodeEnd},
	}
	edges := 0
	for _, out := range transitions {
		edges += len(out)
	}
	assert.Equal(t, len(tests), edges, "every edge is listed here")

	for _, tt := range tests {
		t.Run(tt.from.String()+"/"+tt.on.String(), func(t *testing.T) {
			to, err := next(tt.from, tt.on)
			require.NoError(t, err)
			assert.Equal(t, tt.to, to)
		})
	}
}

func TestUndefinedTransition(t *testing.T) {
	for _, c := range []struct {
		from node
		on   event
	}{
		{nodeTool, evAnswered},
		{nodeSpecialist, evFinish},
		{nodeTerminate, evRouted},
		{nodeEnd, evRouted},
	} {
		_, err := next(c.from, c.on)
		assert.ErrorIs(t, err, ErrTransition, "%s on %s", c.on, c.from)
	}
}
