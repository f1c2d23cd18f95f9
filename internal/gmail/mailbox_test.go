package gmail

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmail "google.golang.org/api/gmail/v1"
)

func TestMailbox_LibcameraScenario(t *testing.T) {
	ctx := context.Background()
	svc := newFakeService()
	svc.labels = []*gmail.Label{
		{Id: "L1", Name: "IOB/libcamera"},
		{Id: "L2", Name: "IOB/libcamera/Done"},
	}
	svc.addPages("L1", []*gmail.Thread{
		apiThread("T1", 5, apiMessage("m1", "[PATCH] fix", "a@b.com", "L1")),
	})
	mb := NewMailbox(svc, newSQLiteStore(t), MailboxOptions{Logger: discardLogger()})

	src, err := mb.Label(ctx, "IOB/libcamera")
	require.NoError(t, err)
	done, err := mb.Label(ctx, "IOB/libcamera/Done")
	require.NoError(t, err)

	var threads []*Thread
	for thread, err := range mb.Threads(ctx, src) {
		require.NoError(t, err)
		threads = append(threads, thread)
	}
	require.Len(t, threads, 1)
	thread := threads[0]

	assert.Equal(t, "T1", thread.ID)
	assert.Equal(t, "[PATCH] fix", thread.Subject())
	assert.Equal(t, []string{"T1/metadata"}, svc.getCalls)

	_, err = thread.Modify(ctx, []Label{src}, []Label{done})
	require.NoError(t, err)

	require.Len(t, svc.modifyCalls, 1)
	assert.Equal(t, []string{"L1"}, svc.modifyCalls[0].RemoveIDs)
	assert.Equal(t, []string{"L2"}, svc.modifyCalls[0].AddIDs)
	assert.Equal(t, 1, svc.listLabelsCalls)
}

func TestMailbox_ThreadsContinuesPastBadThreads(t *testing.T) {
	ctx := context.Background()
	bad := apiMessage("m2", "s", "f")
	bad.Payload.Headers = bad.Payload.Headers[:1]

	svc := newFakeService()
	svc.addPages("L1",
		[]*gmail.Thread{
			apiThread("T1", 1, apiMessage("m1", "one", "a")),
			apiThread("T2", 1, bad),
		},
		[]*gmail.Thread{
			apiThread("T3", 1, apiMessage("m3", "three", "c")),
		},
	)
	mb := NewMailbox(svc, newSQLiteStore(t), MailboxOptions{Logger: discardLogger()})

	var (
		subjects  []string
		malformed int
	)
	for thread, err := range mb.Threads(ctx, srcLabel) {
		var mErr *MalformedThreadError
		if errors.As(err, &mErr) {
			malformed++
			assert.Nil(t, thread)
			continue
		}
		require.NoError(t, err)
		subjects = append(subjects, thread.Subject())
	}

	assert.Equal(t, []string{"one", "three"}, subjects)
	assert.Equal(t, 1, malformed)
}

func TestMailbox_ThreadsStopsOnListingError(t *testing.T) {
	svc := newFakeService()
	svc.addPages("L1", []*gmail.Thread{apiThread("T1", 1, apiMessage("m1", "one", "a"))}, []*gmail.Thread{})
	boom := errors.New("list failed")
	svc.listErr["L1"] = map[int]error{1: boom}
	mb := NewMailbox(svc, newSQLiteStore(t), MailboxOptions{Logger: discardLogger()})

	var (
		seen    int
		lastErr error
	)
	for thread, err := range mb.Threads(context.Background(), srcLabel) {
		if err != nil {
			lastErr = err
			assert.Nil(t, thread)
			continue
		}
		seen++
	}

	assert.Equal(t, 1, seen)
	assert.ErrorIs(t, lastErr, boom)
}

func TestMailbox_ThreadByID(t *testing.T) {
	svc := newFakeService()
	svc.threads["T9"] = apiThread("T9", 2, apiMessage("m1", "by id", "a"))
	mb := NewMailbox(svc, newSQLiteStore(t), MailboxOptions{Logger: discardLogger(), Policy: PolicySnapshot})

	thread, err := mb.Thread(context.Background(), "T9")
	require.NoError(t, err)
	assert.Equal(t, "by id", thread.Subject())
	assert.Equal(t, PolicySnapshot, mb.Hydrator().Policy())
	assert.NotNil(t, mb.Directory())
	assert.NotNil(t, mb.Enumerator())
}
