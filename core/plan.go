package core

// StepKind identifies one unit of orchestrated work within a plan.
type StepKind string

const (
	StepInterpret   StepKind = "interpret"
	StepSafetyCheck StepKind = "safety_check"
	StepToolCall    StepKind = "tool_call"
	StepAdapt       StepKind = "adapt"
	StepRespond     StepKind = "respond"
)

// StepStatus tracks step execution.
type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepRunning StepStatus = "running"
	StepDone    StepStatus = "done"
	StepFailed  StepStatus = "failed"
)

// PlanStep is one ordered unit of work. Steps are mutated in place as the
// orchestrator executes them.
type PlanStep struct {
	Kind   StepKind       `json:"kind"`
	Status StepStatus     `json:"status"`
	Tool   string         `json:"tool,omitempty"`
	Args   map[string]any `json:"args,omitempty"`
	Input  string         `json:"input,omitempty"`
	Output string         `json:"output,omitempty"`
	Err    string         `json:"error,omitempty"`
}

// Plan is the ordered step sequence built once per request and discarded
// after the request completes. The core never persists plans.
type Plan struct {
	RequestID string     `json:"request_id"`
	Intent    Intent     `json:"intent"`
	Steps     []PlanStep `json:"steps"`
}

// Summary produces the compact step trace handed to the session store.
func (p *Plan) Summary() []string {
	out := make([]string, 0, len(p.Steps))
	for _, s := range p.Steps {
		entry := string(s.Kind)
		if s.Tool != "" {
			entry += ":" + s.Tool
		}
		entry += "=" + string(s.Status)
		out = append(out, entry)
	}
	return out
}

// RequestState enumerates the orchestrator state machine over one request.
type RequestState string

const (
	StateReceived         RequestState = "received"
	StateIntentClassified RequestState = "intent_classified"
	StateInputChecked     RequestState = "input_checked"
	StateToolExecuted     RequestState = "tool_executed"
	StateOutputChecked    RequestState = "output_checked"
	StateAdapted          RequestState = "adapted"
	StateResponded        RequestState = "responded"
	StateBlocked          RequestState = "blocked"
)
