package zapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Operation is the NETCONF-style operation carried by an envelope.
type Operation string

const (
	OpGetConfig  Operation = "get-config"
	OpEditConfig Operation = "edit-config"
	OpRPC        Operation = "rpc"
	OpCopyConfig Operation = "copy-config"
)

// Valid reports whether the operation is one the router understands.
func (o Operation) Valid() bool {
	switch o {
	case OpGetConfig, OpEditConfig, OpRPC, OpCopyConfig:
		return true
	}
	return false
}

// Datastore names used as get-config source and edit/copy target.
const (
	DatastoreRunning = "running"
	DatastoreStartup = "startup"
)

// CallSpec describes one logical ZAPI call.
//
// The codec only validates envelope structure. Namespace and root are sent
// verbatim, so roots this package has never heard of still work.
type CallSpec struct {
	Operation Operation
	Namespace string
	Root      string

	// Input is the rpc input object, sent as {<root>: {"input": Input}}
	Input map[string]any
	// Config is the edit-config payload placed under the root key
	Config map[string]any
	// Filter is the get-config subtree filter content (defaults to {})
	Filter map[string]any

	// EditOperation is the optional edit-config-operation attribute
	EditOperation string
	// Source is the get-config or copy-config source datastore
	Source string
	// Target is the edit-config or copy-config target datastore
	Target string

	// NoOutput accepts rpc replies without an output object (e.g. reboot)
	NoOutput bool
}

// GetConfig returns a get-config call for namespace/root.
func GetConfig(namespace, root string) CallSpec {
	return CallSpec{Operation: OpGetConfig, Namespace: namespace, Root: root}
}

// RPC returns an rpc call with the given input (nil for none).
func RPC(namespace, root string, input map[string]any) CallSpec {
	return CallSpec{Operation: OpRPC, Namespace: namespace, Root: root, Input: input}
}

// EditConfig returns an edit-config call writing config under namespace/root.
func EditConfig(namespace, root string, config map[string]any) CallSpec {
	return CallSpec{Operation: OpEditConfig, Namespace: namespace, Root: root, Config: config}
}

// CopyConfig returns a copy-config call between two datastores.
func CopyConfig(namespace, root, source, target string) CallSpec {
	return CallSpec{Operation: OpCopyConfig, Namespace: namespace, Root: root, Source: source, Target: target}
}

// String returns a short description used in logs
func (s CallSpec) String() string {
	return fmt.Sprintf("%s %s/%s", s.Operation, s.Namespace, s.Root)
}

// rpcObject is the fixed part of the request envelope.
type rpcObject struct {
	XMLNS         string         `json:"xmlns"`
	MessageID     int64          `json:"message-id"`
	Operation     Operation      `json:"operation"`
	EditOperation string         `json:"edit-config-operation,omitempty"`
	Params        map[string]any `json:"params"`
}

type requestEnvelope struct {
	RPC rpcObject `json:"rpc"`
}

// Validate checks the envelope-level fields of a call.
func (s CallSpec) Validate() error {
	if !s.Operation.Valid() {
		return NewProtocolError(fmt.Sprintf("unsupported operation %q", s.Operation), nil)
	}
	if s.Namespace == "" {
		return NewProtocolError("call has no namespace", nil)
	}
	if s.Root == "" {
		return NewProtocolError("call has no root", nil)
	}
	return nil
}

// Encode builds the JSON request envelope for a call.
func Encode(spec CallSpec, messageID int64) ([]byte, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	params := map[string]any{}

	switch spec.Operation {
	case OpGetConfig:
		filter := spec.Filter
		if filter == nil {
			// The router answers 5156 if the root object is missing
			filter = map[string]any{}
		}
		params["source"] = orDefault(spec.Source, DatastoreRunning)
		params["filter"] = []any{map[string]any{
			"xmlns":   spec.Namespace,
			"root":    spec.Root,
			"type":    "subtree",
			spec.Root: filter,
		}}

	case OpEditConfig:
		params["target"] = orDefault(spec.Target, DatastoreRunning)
		params["error-option"] = "stop-on-error"
		element := map[string]any{"xmlns": spec.Namespace, "root": spec.Root}
		if spec.Config != nil {
			element[spec.Root] = spec.Config
		}
		params["config"] = []any{element}

	case OpCopyConfig:
		params["source"] = orDefault(spec.Source, DatastoreRunning)
		params["target"] = orDefault(spec.Target, DatastoreStartup)
		params["xmlns"] = spec.Namespace
		params["root"] = spec.Root

	case OpRPC:
		params["xmlns"] = spec.Namespace
		params["root"] = spec.Root
		body := map[string]any{}
		if spec.Input != nil {
			body["input"] = spec.Input
		}
		params[spec.Root] = body
	}

	env := requestEnvelope{RPC: rpcObject{
		XMLNS:     BaseXMLNS,
		MessageID: messageID,
		Operation: spec.Operation,
		Params:    params,
	}}
	if spec.Operation == OpEditConfig {
		env.RPC.EditOperation = spec.EditOperation
	}

	data, err := json.Marshal(env)
	if err != nil {
		return nil, NewProtocolError("failed to encode envelope", err)
	}
	return data, nil
}

// DecodeRequest parses a request envelope back into a CallSpec and message ID.
// Routers never send requests; this exists for recording proxies and tests.
func DecodeRequest(data []byte) (CallSpec, int64, error) {
	var env struct {
		RPC *struct {
			MessageID     json.Number               `json:"message-id"`
			Operation     Operation                 `json:"operation"`
			EditOperation string                    `json:"edit-config-operation"`
			Params        map[string]json.RawMessage `json:"params"`
		} `json:"rpc"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&env); err != nil {
		return CallSpec{}, 0, NewProtocolError("request is not valid JSON", err)
	}
	if env.RPC == nil {
		return CallSpec{}, 0, NewProtocolError("request lacks rpc object", nil)
	}

	id, _ := strconv.ParseInt(env.RPC.MessageID.String(), 10, 64)
	spec := CallSpec{Operation: env.RPC.Operation, EditOperation: env.RPC.EditOperation}
	p := env.RPC.Params

	str := func(key string) string {
		var v string
		if raw, ok := p[key]; ok {
			_ = json.Unmarshal(raw, &v)
		}
		return v
	}

	switch spec.Operation {
	case OpGetConfig, OpEditConfig:
		key := "filter"
		if spec.Operation == OpEditConfig {
			key = "config"
			spec.Target = str("target")
		} else {
			spec.Source = str("source")
		}
		var elements []map[string]json.RawMessage
		if err := json.Unmarshal(p[key], &elements); err != nil || len(elements) == 0 {
			return spec, id, NewProtocolError(fmt.Sprintf("request lacks %s element", key), err)
		}
		_ = json.Unmarshal(elements[0]["xmlns"], &spec.Namespace)
		_ = json.Unmarshal(elements[0]["root"], &spec.Root)
		if raw, ok := elements[0][spec.Root]; ok {
			var payload map[string]any
			_ = json.Unmarshal(raw, &payload)
			if spec.Operation == OpEditConfig {
				spec.Config = payload
			} else {
				spec.Filter = payload
			}
		}

	case OpRPC, OpCopyConfig:
		spec.Namespace = str("xmlns")
		spec.Root = str("root")
		if spec.Operation == OpCopyConfig {
			spec.Source = str("source")
			spec.Target = str("target")
			break
		}
		var body struct {
			Input map[string]any `json:"input"`
		}
		if raw, ok := p[spec.Root]; ok {
			_ = json.Unmarshal(raw, &body)
		}
		spec.Input = body.Input

	default:
		return spec, id, NewProtocolError(fmt.Sprintf("unsupported operation %q", spec.Operation), nil)
	}

	return spec, id, spec.Validate()
}

// Reply is a decoded, successful rpc-reply.
type Reply struct {
	// MessageID echoes the request's message-id (number or string, as sent by the router)
	MessageID any
	// Operation and Root identify the call this reply answers
	Operation Operation
	Root      string
	// Tree is the value stored under the root key of the first data element
	Tree any
	// Element is the whole data element, including xmlns/root metadata
	Element map[string]any
}

// Output returns the rpc output object, or the root subtree when the reply
// carries no output wrapper (get-config replies).
func (r *Reply) Output() map[string]any {
	if r == nil {
		return nil
	}
	tree, ok := r.Tree.(map[string]any)
	if !ok {
		return nil
	}
	if out, ok := tree["output"].(map[string]any); ok {
		return out
	}
	return tree
}

type rawReply struct {
	MessageID any                        `json:"message-id"`
	Result    string                     `json:"result"`
	RPCError  map[string]json.RawMessage `json:"rpc-error"`
	Data      []map[string]any           `json:"data"`
}

// metadataKeys are data element keys that never hold the payload.
var metadataKeys = map[string]bool{
	"xmlns": true, "type": true, "timestamp": true, "root": true, "not-modified": true,
}

// Decode parses a reply body for the given call.
//
// A reply with result != "ok" becomes a device error (or an auth error for
// code 2002). A successful reply lacking the requested root, or an rpc reply
// lacking its output object, is a protocol error. Unknown fields are ignored.
func Decode(body []byte, spec CallSpec) (*Reply, error) {
	var env struct {
		Reply *rawReply `json:"rpc-reply"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, NewProtocolError(fmt.Sprintf("non-JSON response: %s", excerpt(body)), err)
	}
	if env.Reply == nil {
		return nil, NewProtocolError("response lacks rpc-reply", nil)
	}
	raw := env.Reply

	if raw.Result != "" && raw.Result != "ok" {
		return nil, decodeRPCError(raw)
	}

	reply := &Reply{
		MessageID: raw.MessageID,
		Operation: spec.Operation,
		Root:      spec.Root,
	}

	element, tree, found := findRoot(raw.Data, spec.Root)
	reply.Element = element
	reply.Tree = tree

	switch spec.Operation {
	case OpGetConfig:
		if !found {
			return nil, NewProtocolError(fmt.Sprintf("reply lacks config root %q", spec.Root), nil)
		}
	case OpRPC:
		if spec.NoOutput {
			break
		}
		if !found {
			return nil, NewProtocolError(fmt.Sprintf("reply lacks rpc root %q", spec.Root), nil)
		}
		obj, ok := tree.(map[string]any)
		if !ok {
			return nil, NewProtocolError(fmt.Sprintf("rpc root %q is not an object", spec.Root), nil)
		}
		if _, ok := obj["output"]; !ok {
			return nil, NewProtocolError(fmt.Sprintf("rpc reply for %q lacks output", spec.Root), nil)
		}
	}

	return reply, nil
}

// findRoot locates the data element carrying root.
func findRoot(data []map[string]any, root string) (map[string]any, any, bool) {
	for _, element := range data {
		if v, ok := element[root]; ok {
			return element, v, true
		}
	}
	// Some firmware labels the element with "root" but nests the payload
	// under a different key.
	for _, element := range data {
		if name, _ := element["root"].(string); name != root {
			continue
		}
		for key, value := range element {
			if metadataKeys[key] {
				continue
			}
			if _, ok := value.(map[string]any); ok {
				return element, value, true
			}
		}
	}
	if len(data) > 0 {
		return data[0], nil, false
	}
	return nil, nil, false
}

func decodeRPCError(raw *rawReply) error {
	code := raw.Result
	var tag, message string

	if v, ok := raw.RPCError["error-tag"]; ok {
		_ = json.Unmarshal(v, &tag)
	}
	if v, ok := raw.RPCError["error-message"]; ok {
		var obj struct {
			Text string `json:"text"`
		}
		var text string
		if err := json.Unmarshal(v, &obj); err == nil && obj.Text != "" {
			code = obj.Text
		} else if err := json.Unmarshal(v, &text); err == nil && text != "" {
			code = text
		}
	}
	if v, ok := raw.RPCError["error-info"]; ok {
		message = string(v)
	}

	if code == CodeAccessDenied {
		return &Error{Kind: KindAuth, Message: "access denied", Code: code, Tag: tag}
	}
	if message == "" {
		message = "router rejected the request"
	}
	return NewDeviceError(code, tag, message)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func excerpt(body []byte) string {
	if len(body) > 200 {
		return string(body[:200]) + "..."
	}
	return string(body)
}
