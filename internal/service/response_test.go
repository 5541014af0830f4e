package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/keel/internal/engine"
	keelerrors "github.com/mrz1836/keel/internal/errors"
	"github.com/mrz1836/keel/internal/hook"
)

func TestToCommandError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind ErrorKind
	}{
		{"veto", &hook.RejectedError{Hook: hook.PreCommit, ExitCode: 1, Output: "no"}, KindVeto},
		{"hard failure", &engine.OperationError{Op: "merge", ExitCode: 1, Output: "fatal: boom"}, KindHardFailure},
		{"unresolved", fmt.Errorf("continue: %w", keelerrors.ErrUnresolvedConflicts), KindCallerError},
		{"not conflicted", keelerrors.ErrNotConflicted, KindCallerError},
		{"busy", keelerrors.ErrOperationInProgress, KindCallerError},
		{"canceled", keelerrors.ErrOperationCanceled, KindCancelled},
		{"context canceled", context.Canceled, KindCancelled},
		{"not a repo", fmt.Errorf("%w: /tmp/x", keelerrors.ErrNotGitRepo), KindNotFound},
		{"remote missing", keelerrors.ErrRemoteNotFound, KindNotFound},
		{"push rejected", keelerrors.ErrPushRejected, KindHardFailure},
		{"unknown", fmt.Errorf("disk on fire"), KindInternal},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ce := ToCommandError(tc.err)
			require.NotNil(t, ce)
			assert.Equal(t, tc.kind, ce.Kind)
			assert.NotEmpty(t, ce.Message)
		})
	}

	assert.Nil(t, ToCommandError(nil))
}

func TestToCommandError_CarriesDetail(t *testing.T) {
	ce := ToCommandError(fmt.Errorf("merge continue: %w", &hook.RejectedError{Hook: hook.CommitMsg, ExitCode: 1, Output: "missing ticket id"}))
	assert.Equal(t, "commit-msg", ce.Hook)
	assert.Equal(t, "missing ticket id", ce.Output)
	assert.Contains(t, ce.Action, "hook output")

	ce = ToCommandError(&engine.OperationError{Op: "rebase", ExitCode: 1, Output: "error: cannot rebase: You have unstaged changes."})
	assert.Equal(t, "error: cannot rebase: You have unstaged changes.", ce.Output)
}

func TestResponse_JSON(t *testing.T) {
	data, err := json.Marshal(respond(true, nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true,"data":true}`, string(data))

	data, err = json.Marshal(respond(Empty{}, keelerrors.ErrNotConflicted))
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, false, decoded["ok"])
	assert.Equal(t, "caller_error", decoded["error"].(map[string]any)["kind"])
}
