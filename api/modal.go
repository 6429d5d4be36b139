package api

import (
	"github.com/slack-go/slack"

	"standupbot/standup"
)

func plain(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.PlainTextType, text, false, false)
}

func textInput(field, label, initial string, multiline, optional bool) *slack.InputBlock {
	el := slack.NewPlainTextInputBlockElement(nil, field)
	el.Multiline = multiline
	el.InitialValue = initial
	block := slack.NewInputBlock(field, plain(label), nil, el)
	block.Optional = optional
	return block
}

// buildModal renders the standup form. Block and action ids are the
// standup.Field names.
func buildModal(modal standup.Modal) slack.ModalViewRequest {
	pre := modal.Prefill

	attendees := slack.NewOptionsMultiSelectBlockElement(slack.MultiOptTypeUser, plain("Who needs to be there?"), standup.FieldParkingLotAttendees)
	attendees.InitialUsers = pre.ParkingLotAttendees
	attendeesBlock := slack.NewInputBlock(standup.FieldParkingLotAttendees, plain("Parking lot attendees"), nil, attendees)
	attendeesBlock.Optional = true

	date := slack.NewDatePickerBlockElement(standup.FieldScheduleDate)
	date.InitialDate = pre.ScheduleDate
	dateBlock := slack.NewInputBlock(standup.FieldScheduleDate, plain("Schedule date"), plain("Leave empty to post now"), date)
	dateBlock.Optional = true

	clock := slack.NewTimePickerBlockElement(standup.FieldScheduleTime)
	clock.InitialTime = pre.ScheduleTime
	clockBlock := slack.NewInputBlock(standup.FieldScheduleTime, plain("Schedule time"), plain("In your Slack timezone"), clock)
	clockBlock.Optional = true

	blocks := []slack.Block{
		textInput(standup.FieldYesterday, "What did you do yesterday?", pre.Yesterday, true, false),
		textInput(standup.FieldToday, "What will you do today?", pre.Today, true, false),
		textInput(standup.FieldParkingLot, "Parking lot", pre.ParkingLot, true, true),
		attendeesBlock,
		textInput(standup.FieldPullRequests, "Pull requests", pre.PullRequests, true, true),
	}
	// A posted standup can only be edited in place.
	if modal.Metadata.State() != standup.StateEditingPosted {
		blocks = append(blocks, dateBlock, clockBlock)
	}

	title, submit := "Standup", "Post"
	if modal.Metadata.State() != standup.StateNew {
		title, submit = "Edit standup", "Save"
	}

	return slack.ModalViewRequest{
		Type:            slack.VTModal,
		Title:           plain(title),
		Submit:          plain(submit),
		Close:           plain("Cancel"),
		CallbackID:      standupCallbackID,
		PrivateMetadata: modal.Metadata.Encode(),
		Blocks:          slack.Blocks{BlockSet: blocks},
	}
}

// submissionFromState reads the submitted form.
func submissionFromState(state *slack.ViewState) standup.Submission {
	if state == nil {
		return standup.Submission{}
	}
	get := func(field string) slack.BlockAction {
		return state.Values[field][field]
	}
	return standup.Submission{
		Yesterday:           get(standup.FieldYesterday).Value,
		Today:               get(standup.FieldToday).Value,
		ParkingLot:          get(standup.FieldParkingLot).Value,
		PullRequests:        get(standup.FieldPullRequests).Value,
		ParkingLotAttendees: get(standup.FieldParkingLotAttendees).SelectedUsers,
		ScheduleDate:        get(standup.FieldScheduleDate).SelectedDate,
		ScheduleTime:        get(standup.FieldScheduleTime).SelectedTime,
	}
}
