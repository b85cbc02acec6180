package provisioner

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"reflect"
	"sort"
	"strings"

	"github.com/dtroode/vpnbot/internal/model"
)

var (
	remoteIDKeys    = []string{"remote_id", "profile_id", "id"}
	overrideWrapper = []string{"profile", "result", "data", "payload"}
)

// parseResponse normalizes a successful (status < 400) response body.
// It returns an error only when the body is not valid JSON.
func parseResponse(raw []byte) (model.Outcome, error) {
	text := bytes.TrimSpace(raw)
	if len(text) == 0 {
		return model.Outcome{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(text))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return model.Outcome{}, err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return model.Outcome{}, errors.New("trailing data after JSON document")
	}

	outcome := model.Outcome{Raw: raw}
	if doc == nil {
		return outcome, nil
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		outcome.Error = MsgUnexpectedStructure
		outcome.Kind = model.FailureProtocol
		return outcome, nil
	}

	outcome.RemoteID = findRemoteID(obj)
	if msg := errorIndicator(obj); msg != "" {
		outcome.Error = msg
		outcome.Kind = model.FailureRejected
		return outcome, nil
	}
	outcome.Overrides = extractOverrides(obj)

	return outcome, nil
}

// errorIndicator returns the failure message an authority embedded in an
// otherwise successful response, or "".
func errorIndicator(obj map[string]any) string {
	okVal, hasOK := obj["ok"]
	successVal, hasSuccess := obj["success"]

	if okVal == false || successVal == false {
		return firstTruthy(obj, "error", "message", "detail")
	}

	if status, isString := obj["status"].(string); isString {
		switch strings.ToLower(strings.TrimSpace(status)) {
		case "error", "failed", "failure":
			return firstTruthy(obj, "message", "error")
		}
	}

	if (!hasOK || okVal == nil) && (!hasSuccess || successVal == nil) {
		if v, found := obj["error"]; found && truthy(v) {
			return stringify(v)
		}
	}

	return ""
}

func firstTruthy(obj map[string]any, keys ...string) string {
	for _, key := range keys {
		if v := obj[key]; truthy(v) {
			return stringify(v)
		}
	}
	return MsgFailed
}

// extractOverrides returns the first wrapper object found, preferring a
// nested "profile" object inside it.
func extractOverrides(obj map[string]any) model.Overrides {
	for _, key := range overrideWrapper {
		inner, ok := obj[key].(map[string]any)
		if !ok {
			continue
		}
		if nested, ok := inner["profile"].(map[string]any); ok {
			return nested
		}
		return inner
	}
	return nil
}

type visitKey struct {
	ptr  uintptr
	kind reflect.Kind
	len  int
}

// findRemoteID walks the document depth-first and returns the first
// non-empty scalar under remote_id, profile_id or id. Within one object
// those keys win over nested values; children are visited in key order.
func findRemoteID(root any) string {
	stack := []any{root}
	visited := make(map[visitKey]struct{})

	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		key, ok := identity(node)
		if !ok {
			continue
		}
		if _, seen := visited[key]; seen {
			continue
		}
		visited[key] = struct{}{}

		switch v := node.(type) {
		case map[string]any:
			for _, k := range remoteIDKeys {
				if id := scalarID(v[k]); id != "" {
					return id
				}
			}
			keys := make([]string, 0, len(v))
			for k, child := range v {
				if isContainer(child) {
					keys = append(keys, k)
				}
			}
			sort.Sort(sort.Reverse(sort.StringSlice(keys)))
			for _, k := range keys {
				stack = append(stack, v[k])
			}
		case []any:
			for i := len(v) - 1; i >= 0; i-- {
				if isContainer(v[i]) {
					stack = append(stack, v[i])
				}
			}
		}
	}

	return ""
}

func identity(node any) (visitKey, bool) {
	switch v := node.(type) {
	case map[string]any:
		return visitKey{ptr: reflect.ValueOf(v).Pointer(), kind: reflect.Map}, true
	case []any:
		if len(v) == 0 {
			return visitKey{}, false
		}
		return visitKey{ptr: reflect.ValueOf(v).Pointer(), kind: reflect.Slice, len: len(v)}, true
	default:
		return visitKey{}, false
	}
}

func isContainer(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	default:
		return false
	}
}

func scalarID(v any) string {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id)
	case json.Number:
		return id.String()
	case bool:
		if id {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case json.Number:
		f, err := val.Float64()
		return err != nil || f != 0
	case map[string]any:
		return len(val) > 0
	case []any:
		return len(val) > 0
	default:
		return true
	}
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return MsgFailed
		}
		return string(b)
	}
}
