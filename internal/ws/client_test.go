package ws

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeChuckRoast/LedPanels/internal/control"
)

func TestClientUploads(t *testing.T) {
	f := newFixture(t)
	c := NewClient(f.ts.URL + "/")
	ctx := context.Background()

	res, err := c.UploadEvents(ctx, "5,1,1,Mile\n,1,1,Fast,Fay,RICO\n")
	require.NoError(t, err)
	assert.Equal(t, 1, res.EventCount)
	assert.Equal(t, control.Reload, f.request(t).Cmd)

	res, err = c.UploadSchedule(ctx, "5,1,1\n9,9,9\n")
	require.NoError(t, err)
	assert.Equal(t, UploadResult{TotalEntries: 2, ValidEntries: 1, InvalidEntries: 1}, res)
	assert.Equal(t, "5,1,1\n9,9,9\n", f.read(t, "lynx.sch"))
	f.request(t)

	res, err = c.UploadCombined(ctx, lynx, "2,1,1\n1,1,1\n")
	require.NoError(t, err)
	assert.Equal(t, 3, res.EventCount)
	assert.Equal(t, 2, res.ValidEntries)
	assert.Equal(t, lynx, f.read(t, "lynx.evt"))
}

func TestClientReportsServerError(t *testing.T) {
	f := newFixture(t)
	c := NewClient(f.ts.URL)

	_, err := c.UploadEvents(context.Background(), "   ")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "got %v", err)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "events content cannot be empty", apiErr.Msg)
	assert.Equal(t, lynx, f.read(t, "lynx.evt"), "rejected upload leaves the file alone")

	_, err = c.UploadCombined(context.Background(), lynx, "42,1,1\n")
	require.Error(t, err)
	assert.Equal(t, lynx, f.read(t, "lynx.evt"))
}

func TestClientUnreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1")
	_, err := c.UploadEvents(context.Background(), lynx)
	require.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}
