package constants

// WorkflowStatus is the canonical lifecycle status for rows in workflow.
type WorkflowStatus string

// Stable values (store these exact strings in DB).
const (
	WorkflowAnalyzing   WorkflowStatus = "analyzing"   // document analysis in progress
	WorkflowExtracting  WorkflowStatus = "extracting"  // sample extraction in progress
	WorkflowConfiguring WorkflowStatus = "configuring" // awaiting user review/naming
	WorkflowActive      WorkflowStatus = "active"      // terminal; ready for executions
)

// workflowTransitions is the exhaustive transition table. Anything not listed
// here is rejected; the lifecycle never skips a stage.
var workflowTransitions = map[WorkflowStatus][]WorkflowStatus{
	WorkflowAnalyzing:   {WorkflowExtracting},
	WorkflowExtracting:  {WorkflowConfiguring},
	WorkflowConfiguring: {WorkflowActive},
	WorkflowActive:      {WorkflowActive}, // renames of an already-active workflow
}

// CanTransition reports whether from -> to is a legal workflow status write.
func CanTransition(from, to WorkflowStatus) bool {
	for _, next := range workflowTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ExecutionStatus is the canonical status for rows in execution.
type ExecutionStatus string

const (
	ExecutionPending    ExecutionStatus = "pending"    // created, not yet dispatched
	ExecutionProcessing ExecutionStatus = "processing" // extraction call in flight
	ExecutionCompleted  ExecutionStatus = "completed"  // terminal, result populated
	ExecutionFailed     ExecutionStatus = "failed"     // terminal, error_message populated
)

var executionTransitions = map[ExecutionStatus][]ExecutionStatus{
	ExecutionPending:    {ExecutionProcessing},
	ExecutionProcessing: {ExecutionCompleted, ExecutionFailed},
}

// CanTransitionExecution reports whether from -> to is a legal execution
// status write. Terminal states admit no transitions.
func CanTransitionExecution(from, to ExecutionStatus) bool {
	for _, next := range executionTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminalExecution reports whether a status admits no further writes
// (deletion excepted).
func IsTerminalExecution(s ExecutionStatus) bool {
	return s == ExecutionCompleted || s == ExecutionFailed
}
