package api

const (
	standupCallbackID = "standup_submission"
	actionsBlockID    = "standup_actions"

	commandPending    = "pending"
	commandParkingLot = "parking-lot"
	commandHelp       = "help"

	usageMessage = "Usage:\n" +
		"• `/standup` opens the standup form\n" +
		"• `/standup pending` lists who hasn't posted today\n" +
		"• `/standup parking-lot` shows today's parking lot"
)
