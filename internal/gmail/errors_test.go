package gmail

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func TestNewRemoteError(t *testing.T) {
	assert.NoError(t, newRemoteError("get_thread", "T1", nil))

	apiErr := &googleapi.Error{Code: 429, Message: "rate limited"}
	err := newRemoteError("list_threads", "L1", fmt.Errorf("wrapped: %w", apiErr))

	var remote *RemoteServiceError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, 429, remote.StatusCode)
	assert.False(t, remote.NotFound())
	assert.ErrorIs(t, err, apiErr)
	assert.Contains(t, err.Error(), "gmail list_threads L1 (status 429)")

	plain := newRemoteError("list_labels", "", errors.New("dial tcp: timeout"))
	assert.Equal(t, "gmail list_labels: dial tcp: timeout", plain.Error())
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, `unknown label "IOB/x"`, (&UnknownLabelError{Name: "IOB/x"}).Error())
	assert.Equal(t, "malformed thread T1: thread has no messages",
		(&MalformedThreadError{ThreadID: "T1", Reason: "thread has no messages"}).Error())
	assert.Equal(t, "malformed thread T1: message m1: missing From header",
		(&MalformedThreadError{ThreadID: "T1", MessageID: "m1", Reason: "missing From header"}).Error())

	inner := errors.New("disk full")
	cacheErr := &CacheWriteError{ThreadID: "T1", Err: inner}
	assert.Equal(t, "caching thread T1: disk full", cacheErr.Error())
	assert.ErrorIs(t, cacheErr, inner)
}
