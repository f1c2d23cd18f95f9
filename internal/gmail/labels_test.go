package gmail

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmail "google.golang.org/api/gmail/v1"
)

func libcameraLabels() []*gmail.Label {
	return []*gmail.Label{
		{Id: "L1", Name: "IOB/libcamera"},
		{Id: "L2", Name: "IOB/libcamera/Done"},
		{Id: "INBOX", Name: "INBOX"},
	}
}

func TestLabel_String(t *testing.T) {
	l := Label{ID: "L2", Name: "IOB/libcamera/Done"}
	assert.Equal(t, "IOB/libcamera/Done : (L2)", l.String())
}

func TestLabelDirectory_ListsOnce(t *testing.T) {
	ctx := context.Background()
	svc := newFakeService()
	svc.labels = libcameraLabels()
	dir := NewLabelDirectory(svc, discardLogger())

	labels, err := dir.Labels(ctx)
	require.NoError(t, err)
	assert.Equal(t, Label{ID: "L1", Name: "IOB/libcamera"}, labels["IOB/libcamera"])
	assert.Len(t, labels, 3)

	done, err := dir.Label(ctx, "IOB/libcamera/Done")
	require.NoError(t, err)
	assert.Equal(t, "L2", done.ID)

	names, err := dir.Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"INBOX", "IOB/libcamera", "IOB/libcamera/Done"}, names)

	byID, ok, err := dir.ByID(ctx, "L1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "IOB/libcamera", byID.Name)

	_, ok, err = dir.ByID(ctx, "L9")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, 1, svc.listLabelsCalls)
}

func TestLabelDirectory_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	svc := newFakeService()
	svc.labels = libcameraLabels()
	dir := NewLabelDirectory(svc, discardLogger())

	labels, err := dir.Labels(ctx)
	require.NoError(t, err)
	delete(labels, "IOB/libcamera")

	_, err = dir.Label(ctx, "IOB/libcamera")
	assert.NoError(t, err)
}

func TestLabelDirectory_UnknownLabel(t *testing.T) {
	svc := newFakeService()
	svc.labels = libcameraLabels()
	dir := NewLabelDirectory(svc, discardLogger())

	_, err := dir.Label(context.Background(), "IOB/linux")

	var unknown *UnknownLabelError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "IOB/linux", unknown.Name)

	labels, err := dir.Labels(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, labels, "IOB/linux")
}

func TestLabelDirectory_EmptyListing(t *testing.T) {
	var buf bytes.Buffer
	svc := newFakeService()
	dir := NewLabelDirectory(svc, slog.New(slog.NewTextHandler(&buf, nil)))

	labels, err := dir.Labels(context.Background())
	require.NoError(t, err)
	assert.Empty(t, labels)
	assert.Contains(t, buf.String(), "no labels found")

	_, err = dir.Labels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, svc.listLabelsCalls)
}

func TestLabelDirectory_FailureNotMemoized(t *testing.T) {
	ctx := context.Background()
	svc := newFakeService()
	svc.labelsErr = errors.New("unavailable")
	dir := NewLabelDirectory(svc, discardLogger())

	_, err := dir.Label(ctx, "IOB/libcamera")
	require.Error(t, err)

	svc.labelsErr = nil
	svc.labels = libcameraLabels()

	l, err := dir.Label(ctx, "IOB/libcamera")
	require.NoError(t, err)
	assert.Equal(t, "L1", l.ID)
	assert.Equal(t, 2, svc.listLabelsCalls)
}
