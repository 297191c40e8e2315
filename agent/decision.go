package agent

import (
	"fmt"
	"math"
	"strconv"

	"github.com/richinex/virgil/internal/json"
	"github.com/richinex/virgil/tools"
)

// Decision is one parsed model step: either a batch of tool calls or a
// final answer.
type Decision struct {
	Thought     string
	Actions     []Action
	IsFinal     bool
	FinalAnswer string
}

// Action is one requested tool call before call-ID assignment.
type Action struct {
	Tool string
	Args tools.Args
}

// decisionWire matches the JSON the model emits. Both the plural "actions"
// and the legacy singular "action" are accepted; argument values may arrive
// as numbers or booleans and are normalized to strings.
type decisionWire struct {
	Thought     string       `json:"thought"`
	Actions     []actionWire `json:"actions"`
	Action      *actionWire  `json:"action"`
	IsFinal     bool         `json:"is_final"`
	FinalAnswer string       `json:"final_answer"`
}

type actionWire struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
}

// ParseDecision extracts and validates a decision from raw model output.
func ParseDecision(raw string) (*Decision, error) {
	wire, err := json.Decode[decisionWire](raw)
	if err != nil {
		return nil, err
	}

	actions := wire.Actions
	if len(actions) == 0 && wire.Action != nil {
		actions = []actionWire{*wire.Action}
	}

	d := &Decision{
		Thought:     wire.Thought,
		IsFinal:     wire.IsFinal,
		FinalAnswer: wire.FinalAnswer,
	}
	for _, a := range actions {
		if a.Tool == "" {
			return nil, fmt.Errorf("decision contains an action without a tool name")
		}
		d.Actions = append(d.Actions, Action{Tool: a.Tool, Args: normalizeArgs(a.Args)})
	}

	if d.IsFinal && d.FinalAnswer == "" {
		return nil, fmt.Errorf("decision marked final but final_answer is empty")
	}
	if !d.IsFinal && len(d.Actions) == 0 {
		return nil, fmt.Errorf("decision has neither actions nor a final answer")
	}
	return d, nil
}

// normalizeArgs converts loosely-typed argument values to the string form
// the tools expect.
func normalizeArgs(in map[string]any) tools.Args {
	args := make(tools.Args, len(in))
	for k, v := range in {
		switch val := v.(type) {
		case string:
			args[k] = val
		case bool:
			args[k] = strconv.FormatBool(val)
		case float64:
			if val == math.Trunc(val) && !math.IsInf(val, 0) {
				args[k] = strconv.FormatInt(int64(val), 10)
			} else {
				args[k] = strconv.FormatFloat(val, 'f', -1, 64)
			}
		case nil:
			// skip nulls
		default:
			args[k] = fmt.Sprintf("%v", val)
		}
	}
	return args
}
