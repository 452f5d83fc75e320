package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/muurk/multy/internal/logging"
	"github.com/muurk/multy/internal/zapi"
)

// Caller issues one logical ZAPI call. *zapi.Dispatcher implements it.
type Caller interface {
	Call(ctx context.Context, spec zapi.CallSpec) (*zapi.Reply, error)
}

// Refresher re-reads polled resources on demand. *poller.Scheduler implements it.
type Refresher interface {
	Refresh(ctx context.Context, names ...string) error
}

// Result is the outcome of a successful command.
type Result struct {
	Command string
	Output  map[string]any

	// Refreshed lists resources re-read after the command.
	Refreshed []string

	// RefreshErr is set when the follow-up refresh failed. The command
	// itself still succeeded.
	RefreshErr error
}

// Facade runs table-driven commands through a Caller.
type Facade struct {
	caller    Caller
	refresher Refresher
}

// New creates a facade sending calls through caller.
func New(caller Caller) *Facade {
	return &Facade{caller: caller}
}

// SetRefresher attaches r so affected resources are refreshed after each
// successful command.
func (f *Facade) SetRefresher(r Refresher) {
	f.refresher = r
}

// Execute validates args against the named command and submits it.
// Commands are never retried beyond the dispatcher's own policy.
func (f *Facade) Execute(ctx context.Context, name string, args map[string]any) (*Result, error) {
	cmd, ok := Lookup(name)
	if !ok {
		return nil, NewValidationError(name, "", fmt.Sprintf("unknown command (known: %s)", strings.Join(Names(), ", ")))
	}
	spec, err := cmd.CallSpec(args)
	if err != nil {
		return nil, err
	}

	reply, err := f.caller.Call(ctx, spec)
	if err != nil {
		logging.Warn("Command failed",
			zap.String("command", name),
			zap.String("kind", zapi.ShortMessage(err)),
			zap.Error(err),
		)
		return nil, err
	}
	logging.Info("Command completed", zap.String("command", name))

	result := &Result{Command: name, Output: reply.Output()}
	if f.refresher != nil && len(cmd.Affects) > 0 {
		result.Refreshed = cmd.Affects
		if err := f.refresher.Refresh(ctx, cmd.Affects...); err != nil {
			result.RefreshErr = err
			logging.Warn("Refresh after command failed",
				zap.String("command", name),
				zap.Strings("resources", cmd.Affects),
				zap.Error(err),
			)
		}
	}
	return result, nil
}

// CallSpec validates args and builds the call for this command.
func (c Command) CallSpec(args map[string]any) (zapi.CallSpec, error) {
	input, err := c.Input(args)
	if err != nil {
		return zapi.CallSpec{}, err
	}
	op := c.Operation
	if op == "" {
		op = zapi.OpRPC
	}
	spec := zapi.CallSpec{
		Operation: op,
		Namespace: c.Namespace,
		Root:      c.Root,
		NoOutput:  c.NoOutput,
	}
	if op == zapi.OpEditConfig {
		spec.Config = input
	} else {
		spec.Input = input
	}
	return spec, nil
}

// Input validates args and returns the nested input object. Argument
// values may be typed or strings, as they arrive from flags or JSON.
func (c Command) Input(args map[string]any) (map[string]any, error) {
	known := make(map[string]bool, len(c.Fields))
	for _, f := range c.Fields {
		known[f.Name] = true
	}
	var unknown []string
	for name := range args {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, NewValidationError(c.Name, unknown[0], "unknown argument")
	}

	if len(c.AnyOf) > 0 {
		found := false
		for _, name := range c.AnyOf {
			if _, ok := args[name]; ok {
				found = true
				break
			}
		}
		if !found {
			return nil, NewValidationError(c.Name, "", "at least one of "+strings.Join(c.AnyOf, ", ")+" is required")
		}
	}

	values := make(map[string]any, len(c.Fields))
	for _, f := range c.Fields {
		raw, ok := args[f.Name]
		if !ok {
			if f.Required {
				return nil, NewValidationError(c.Name, f.Name, "required")
			}
			continue
		}
		v, err := coerce(f.Type, raw)
		if err != nil {
			return nil, NewValidationError(c.Name, f.Name, err.Error())
		}
		values[f.Name] = v
	}

	input := map[string]any{}
	for _, f := range c.Fields {
		v, ok := values[f.Name]
		switch {
		case ok:
		case f.DefaultFrom != "":
			if v, ok = values[f.DefaultFrom]; !ok {
				continue
			}
		case f.Default != nil:
			v = f.Default
			if fn, isFunc := v.(func() any); isFunc {
				v = fn()
			}
		default:
			continue
		}
		setPath(input, f.key(), v)
	}
	return input, nil
}

func setPath(m map[string]any, key string, v any) {
	parts := strings.Split(key, ".")
	for _, p := range parts[:len(parts)-1] {
		child, ok := m[p].(map[string]any)
		if !ok {
			child = map[string]any{}
			m[p] = child
		}
		m = child
	}
	m[parts[len(parts)-1]] = v
}

func coerce(t FieldType, raw any) (any, error) {
	switch t {
	case TypeInt:
		return toInt(raw)
	case TypePort:
		n, err := toInt(raw)
		if err != nil {
			return nil, err
		}
		return n, ValidatePort(n)
	case TypeBrightness:
		n, err := toInt(raw)
		if err != nil {
			return nil, err
		}
		return n, ValidateBrightness(n)
	case TypeSwitch:
		switch v := raw.(type) {
		case bool:
			if v {
				return "on", nil
			}
			return "off", nil
		case string:
			s := strings.ToLower(v)
			switch s {
			case "on", "true", "1":
				return "on", nil
			case "off", "false", "0":
				return "off", nil
			}
		case json.Number, int, int64, float64:
			if n, err := toInt(v); err == nil {
				switch n {
				case 1:
					return "on", nil
				case 0:
					return "off", nil
				}
			}
		}
		return nil, fmt.Errorf("want on or off, got %v", raw)
	}

	s, err := toString(raw)
	if err != nil {
		return nil, err
	}
	switch t {
	case TypeMAC:
		if err := ValidateMAC(s); err != nil {
			return nil, err
		}
		return NormalizeMAC(s), nil
	case TypeIPv4:
		return s, ValidateIPv4(s)
	case TypeSSID:
		return s, ValidateSSID(s)
	case TypePassword:
		return s, ValidateWiFiPassword(s)
	case TypeProtocol:
		s = strings.ToUpper(s)
		return s, ValidateProtocol(s)
	}
	return s, nil
}

func toInt(raw any) (int, error) {
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("want integer, got %v", v)
		}
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("want integer, got %q", v)
		}
		return int(n), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("want integer, got %q", v)
		}
		return n, nil
	}
	return 0, fmt.Errorf("want integer, got %T", raw)
}

func toString(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case json.Number:
		return v.String(), nil
	}
	return "", fmt.Errorf("want string, got %T", raw)
}
