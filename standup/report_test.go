package standup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPending(t *testing.T) {
	f := newFixture(t, afternoon)
	ctx := context.Background()
	f.platform.members["C1"] = []string{"U1", "U2", "B1", "U3"}

	_, err := f.orch.Submit(ctx, newMeta(), basicSubmission())
	require.NoError(t, err)

	pending, err := f.orch.Pending(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, []string{"U2", "U3"}, pending)

	pending, err = f.orch.Pending(ctx, "C-empty")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestParkingLotSummary(t *testing.T) {
	f := newFixture(t, afternoon)
	ctx := context.Background()

	summary, err := f.orch.ParkingLotSummary(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, "No parking lot items today.", summary)

	sub := basicSubmission()
	sub.ParkingLot = "deploy freeze"
	sub.ParkingLotAttendees = []string{"U2", "U9"}
	_, err = f.orch.Submit(ctx, newMeta(), sub)
	require.NoError(t, err)

	other := basicSubmission()
	other.ParkingLot = "lunch order"
	meta := newMeta()
	meta.UserID = "U3"
	_, err = f.orch.Submit(ctx, meta, other)
	require.NoError(t, err)

	summary, err = f.orch.ParkingLotSummary(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, "*Parking lot for 2020-10-20*\n"+
		"• *ada*: deploy freeze (with grace, <@U9>)\n"+
		"• *linus*: lunch order\n", summary)
}

func TestParkingLotSummaryLookupFailure(t *testing.T) {
	f := newFixture(t, afternoon)
	ctx := context.Background()

	sub := basicSubmission()
	sub.ParkingLot = "deploy freeze"
	_, err := f.orch.Submit(ctx, newMeta(), sub)
	require.NoError(t, err)

	f.platform.failLookup = true
	_, err = f.orch.ParkingLotSummary(ctx, "C1")
	var platformErr *PlatformError
	assert.ErrorAs(t, err, &platformErr)
}

func TestFormatStatus(t *testing.T) {
	text := FormatStatus("U1", Submission{
		Yesterday:           "did X",
		Today:               "will do Y",
		ParkingLotAttendees: []string{"U2", "U3"},
	})
	assert.Contains(t, text, "*Standup from <@U1>*")
	assert.Contains(t, text, "*Today*\nwill do Y")
	assert.Contains(t, text, "<@U2>, <@U3>")
	assert.NotContains(t, text, "*Pull requests*")
}
