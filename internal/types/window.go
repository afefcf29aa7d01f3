package types

import (
	"encoding/json"
	"maps"
)

// OpenArgsGlobal is the script global that holds a window's own WindowState
const OpenArgsGlobal = "__WIDGETHOST_OPEN_ARGS"

// ArgPair is one KEY=VALUE launch argument
type ArgPair struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// OpenRequest asks for one instance of a window definition
type OpenRequest struct {
	WindowID string    `json:"windowId" yaml:"windowId"`
	Args     []ArgPair `json:"args,omitempty" yaml:"args,omitempty"`
}

// ArgsMap collapses Args into a map; a repeated key keeps its last value
func (r OpenRequest) ArgsMap() map[string]string {
	out := make(map[string]string, len(r.Args))
	for _, pair := range r.Args {
		out[pair.Key] = pair.Value
	}
	return out
}

// WindowState is the record of one opened window, as seen by the window's own content
type WindowState struct {
	WindowID    string            `json:"windowId" yaml:"windowId"`
	WindowLabel string            `json:"windowLabel" yaml:"windowLabel"`
	Args        map[string]string `json:"args" yaml:"args"`
	Env         map[string]string `json:"env" yaml:"env"`
}

// MarshalJSON writes empty maps as {} rather than null
func (s WindowState) MarshalJSON() ([]byte, error) {
	type plain WindowState
	out := plain(s)
	if out.Args == nil {
		out.Args = map[string]string{}
	}
	if out.Env == nil {
		out.Env = map[string]string{}
	}
	return json.Marshal(out)
}

// Clone returns a deep copy
func (s WindowState) Clone() WindowState {
	out := s
	out.Args = maps.Clone(s.Args)
	out.Env = maps.Clone(s.Env)
	if out.Args == nil {
		out.Args = map[string]string{}
	}
	if out.Env == nil {
		out.Env = map[string]string{}
	}
	return out
}

// InjectionScript returns the statement that publishes the record to the window's script context
func (s WindowState) InjectionScript() (string, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return "window." + OpenArgsGlobal + "=" + string(payload) + ";", nil
}
