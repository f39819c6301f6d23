package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	t.Run("lifecycle order", func(t *testing.T) {
		assert.True(t, CanTransition(WorkflowAnalyzing, WorkflowExtracting))
		assert.True(t, CanTransition(WorkflowExtracting, WorkflowConfiguring))
		assert.True(t, CanTransition(WorkflowConfiguring, WorkflowActive))
	})

	t.Run("active allows renames", func(t *testing.T) {
		assert.True(t, CanTransition(WorkflowActive, WorkflowActive))
	})

	t.Run("no skipping or reversing", func(t *testing.T) {
		assert.False(t, CanTransition(WorkflowAnalyzing, WorkflowConfiguring))
		assert.False(t, CanTransition(WorkflowAnalyzing, WorkflowActive))
		assert.False(t, CanTransition(WorkflowConfiguring, WorkflowExtracting))
		assert.False(t, CanTransition(WorkflowActive, WorkflowAnalyzing))
	})
}

func TestCanTransitionExecution(t *testing.T) {
	assert.True(t, CanTransitionExecution(ExecutionPending, ExecutionProcessing))
	assert.True(t, CanTransitionExecution(ExecutionProcessing, ExecutionCompleted))
	assert.True(t, CanTransitionExecution(ExecutionProcessing, ExecutionFailed))

	assert.False(t, CanTransitionExecution(ExecutionPending, ExecutionCompleted))
	assert.False(t, CanTransitionExecution(ExecutionCompleted, ExecutionProcessing))
	assert.False(t, CanTransitionExecution(ExecutionFailed, ExecutionProcessing))
}

func TestIsTerminalExecution(t *testing.T) {
	assert.False(t, IsTerminalExecution(ExecutionPending))
	assert.False(t, IsTerminalExecution(ExecutionProcessing))
	assert.True(t, IsTerminalExecution(ExecutionCompleted))
	assert.True(t, IsTerminalExecution(ExecutionFailed))
}
