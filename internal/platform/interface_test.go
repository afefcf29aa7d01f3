package platform

import (
	"errors"
	"reflect"
	"testing"
)

func TestWorkspaceHints_States(t *testing.T) {
	tests := []struct {
		name  string
		hints WorkspaceHints
		want  []string
	}{
		{"none", WorkspaceHints{}, nil},
		{"taskbar", WorkspaceHints{SkipTaskbar: true}, []string{"_NET_WM_STATE_SKIP_TASKBAR"}},
		{"all", WorkspaceHints{SkipTaskbar: true, SkipPager: true, AllWorkspaces: true}, []string{
			"_NET_WM_STATE_SKIP_TASKBAR",
			"_NET_WM_STATE_SKIP_PAGER",
			"_NET_WM_STATE_STICKY",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.hints.states(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("states() = %v, want %v", got, tt.want)
			}
			if tt.hints.Empty() != (len(tt.want) == 0) {
				t.Errorf("Empty() = %v", tt.hints.Empty())
			}
		})
	}
}

func TestNoopAPI(t *testing.T) {
	var api WindowAPI = NoopAPI{}

	if api.SupportsToolWindow() {
		t.Error("NoopAPI should not support tool windows")
	}
	if err := api.SetToolWindow(1, true); !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
	if err := api.ApplyWorkspaceHints(1, WorkspaceHints{SkipTaskbar: true}); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestNewWindowAPI_ToolWindowOnlyWhereSupported(t *testing.T) {
	api := NewWindowAPI()
	if api == nil {
		t.Fatal("NewWindowAPI returned nil")
	}
	if !api.SupportsToolWindow() {
		if err := api.SetToolWindow(0, true); !errors.Is(err, ErrUnsupported) {
			t.Errorf("expected ErrUnsupported when not supported, got %v", err)
		}
	}
}
