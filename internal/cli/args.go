package cli

import (
	"strings"

	hosterrors "widgethost/internal/infrastructure/errors"
	"widgethost/internal/types"
)

// ParseOpenArg splits a KEY=VALUE token at the first '='
func ParseOpenArg(token string) (types.ArgPair, error) {
	key, value, ok := strings.Cut(token, "=")
	if !ok {
		return types.ArgPair{}, hosterrors.HandleArgParseError("parse_open_arg", token, "expected KEY=VALUE")
	}
	if key == "" {
		return types.ArgPair{}, hosterrors.HandleArgParseError("parse_open_arg", token, "empty key")
	}
	return types.ArgPair{Key: key, Value: value}, nil
}

// buildOpenRequest parses every token; positional pairs come before --args pairs
func buildOpenRequest(windowID string, positional, flagged []string) (types.OpenRequest, error) {
	if strings.TrimSpace(windowID) == "" {
		return types.OpenRequest{}, hosterrors.HandleValidationError("open", "window_id", windowID, "window id cannot be empty")
	}

	req := types.OpenRequest{WindowID: windowID}
	for _, tokens := range [][]string{positional, flagged} {
		for _, token := range tokens {
			pair, err := ParseOpenArg(token)
			if err != nil {
				return types.OpenRequest{}, err
			}
			req.Args = append(req.Args, pair)
		}
	}
	return req, nil
}
