package messagesvc

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/Chriisy/Myhrvoldgruppen-sub000/internal/protocol"
	"github.com/Chriisy/Myhrvoldgruppen-sub000/internal/registry"
)

// celFilter wraps a compiled CEL program evaluated against content messages
// before delivery to one subscriber. When disabled, Eval always returns true.
type celFilter struct {
	prog    cel.Program
	enabled bool
}

func newCELFilter(expr string) (celFilter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return celFilter{enabled: false}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("channel", cel.StringType),
		cel.Variable("sender", cel.StringType),
		cel.Variable("ts_ms", cel.IntType),
		cel.Variable("size", cel.IntType),
		cel.Variable("text", cel.StringType),
		// Expose parsed JSON payload (map/list/values) for field filtering
		cel.Variable("json", cel.DynType),
		// Current time in ms for windowed filters
		cel.Variable("now_ms", cel.IntType),
	)
	if err != nil {
		return celFilter{}, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return celFilter{}, iss.Err()
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return celFilter{}, iss2.Err()
	}
	prog, err := env.Program(checked)
	if err != nil {
		return celFilter{}, err
	}
	return celFilter{prog: prog, enabled: true}, nil
}

// Eval evaluates the compiled expression against an envelope.
func (f celFilter) Eval(env protocol.Envelope) bool {
	if !f.enabled {
		return true
	}
	var jsonObj any
	_ = json.Unmarshal(env.Data, &jsonObj)
	out, _, err := f.prog.Eval(map[string]any{
		"channel": env.ChannelID,
		"sender":  env.SenderID,
		"ts_ms":   env.Timestamp,
		"size":    int64(len(env.Data)),
		"text":    string(env.Data),
		"json":    jsonObj,
		"now_ms":  time.Now().UnixMilli(),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}

// FilterFunc adapts the filter for the registry's per-subscription hook.
func (f celFilter) FilterFunc() registry.FilterFunc {
	if !f.enabled {
		return nil
	}
	return f.Eval
}
