package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"go.uber.org/zap"

	"standupbot/standup"
	"standupbot/utils"
	"standupbot/worker"
)

// Handler serves the Slack endpoints and the worker endpoint.
type Handler struct {
	orch    *standup.Orchestrator
	signer  *utils.Signer
	invoker worker.Invoker
	log     *zap.Logger
}

func NewHandler(orch *standup.Orchestrator, signer *utils.Signer, invoker worker.Invoker, log *zap.Logger) *Handler {
	return &Handler{orch: orch, signer: signer, invoker: invoker, log: log.Named("api")}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// Events only answers the url_verification handshake; the bot subscribes to
// no other events.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		http.Error(w, "Unable to read request body", http.StatusBadRequest)
		return
	}

	event, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		http.Error(w, "Invalid Slack event format", http.StatusBadRequest)
		return
	}

	if event.Type == slackevents.URLVerification {
		var challenge slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &challenge); err != nil {
			http.Error(w, "Invalid challenge", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(challenge.Challenge))
		return
	}

	h.log.Debug("Events: ignoring event", zap.String("type", event.Type))
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) Commands(w http.ResponseWriter, r *http.Request) {
	cmd, err := slack.SlashCommandParse(r)
	if err != nil {
		http.Error(w, "Invalid slash command", http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	log := h.log.With(zap.String("channel", cmd.ChannelID), zap.String("user", cmd.UserID))

	switch strings.ToLower(strings.TrimSpace(cmd.Text)) {
	case "":
		if err := h.orch.OpenNew(ctx, cmd.TriggerID, cmd.ChannelID, cmd.UserID); err != nil {
			log.Error("Commands: failed to open standup form", zap.Error(err))
			respondEphemeral(w, standup.ErrorText(err))
			return
		}
		w.WriteHeader(http.StatusOK)

	case commandPending:
		pending, err := h.orch.Pending(ctx, cmd.ChannelID)
		if err != nil {
			log.Error("Commands: pending failed", zap.Error(err))
			respondEphemeral(w, standup.ErrorText(err))
			return
		}
		respondEphemeral(w, pendingText(pending))

	case commandParkingLot:
		summary, err := h.orch.ParkingLotSummary(ctx, cmd.ChannelID)
		if err != nil {
			log.Error("Commands: parking lot summary failed", zap.Error(err))
			respondEphemeral(w, standup.ErrorText(err))
			return
		}
		respondEphemeral(w, summary)

	case commandHelp:
		respondEphemeral(w, usageMessage)

	default:
		respondEphemeral(w, "I don't know `"+cmd.Text+"`.\n"+usageMessage)
	}
}

// Interactions validates form submissions and hands them to the worker, and
// serves the edit and delete buttons directly.
func (h *Handler) Interactions(w http.ResponseWriter, r *http.Request) {
	raw := r.FormValue("payload")
	var callback slack.InteractionCallback
	if err := json.Unmarshal([]byte(raw), &callback); err != nil {
		http.Error(w, "Invalid interaction payload", http.StatusBadRequest)
		return
	}

	switch callback.Type {
	case slack.InteractionTypeViewSubmission:
		h.submitView(w, r, raw, callback)
	case slack.InteractionTypeBlockActions:
		h.blockActions(r.Context(), callback)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusOK)
	}
}

func (h *Handler) submitView(w http.ResponseWriter, r *http.Request, raw string, callback slack.InteractionCallback) {
	if callback.View.CallbackID != standupCallbackID {
		w.WriteHeader(http.StatusOK)
		return
	}
	if _, err := standup.DecodeTransitMetadata(callback.View.PrivateMetadata); err != nil {
		h.log.Error("Interactions: bad private metadata", zap.Error(err))
		http.Error(w, "Invalid private metadata", http.StatusBadRequest)
		return
	}

	sub := submissionFromState(callback.View.State)
	if problems := sub.Validate(); problems != nil {
		errs := make(map[string]string, len(problems))
		for field, err := range problems {
			errs[field] = standup.ErrorText(err)
		}
		respondJSON(w, slack.NewErrorsViewSubmissionResponse(errs))
		return
	}

	body := worker.EncodePayload(raw)
	inv := worker.NewInvocation(body, h.signer.Resign(r.Header, body))
	if err := h.invoker.Invoke(r.Context(), inv); err != nil {
		h.log.Error("Interactions: failed to delegate submission", zap.Error(err))
		respondJSON(w, slack.NewErrorsViewSubmissionResponse(map[string]string{
			standup.FieldToday: "Couldn't save your standup right now. Please try again.",
		}))
		return
	}
	h.log.Info("Interactions: submission delegated",
		zap.String("invocation", inv.ID),
		zap.String("user", callback.User.ID),
		zap.String("body_sha256", utils.Hash(body)),
	)
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) blockActions(ctx context.Context, callback slack.InteractionCallback) {
	for _, action := range callback.ActionCallback.BlockActions {
		if action.ActionID != standup.ActionEdit && action.ActionID != standup.ActionDelete {
			continue
		}
		cmd, ok := standup.ParseChangeMessageCommand(action.Value)
		if !ok {
			h.log.Warn("Interactions: malformed change command", zap.String("value", action.Value))
			h.orch.Notify(ctx, callback.Channel.ID, callback.User.ID, standup.ErrStatusNotFound)
			continue
		}

		var err error
		if action.ActionID == standup.ActionEdit {
			err = h.orch.OpenEditor(ctx, callback.TriggerID, callback.User.ID, cmd)
		} else {
			err = h.orch.Delete(ctx, callback.User.ID, cmd)
		}
		if err != nil {
			h.orch.Notify(ctx, cmd.ChannelID, callback.User.ID, err)
		}
	}
}

// WorkerEvents runs a delegated submission. It sits behind VerifySignature.
func (h *Handler) WorkerEvents(w http.ResponseWriter, r *http.Request) {
	if body, err := readBody(r); err == nil {
		h.log.Debug("WorkerEvents: received", zap.String("body_sha256", utils.Hash(string(body))))
	}
	var callback slack.InteractionCallback
	if err := json.Unmarshal([]byte(r.FormValue("payload")), &callback); err != nil {
		http.Error(w, "Invalid interaction payload", http.StatusBadRequest)
		return
	}
	meta, err := standup.DecodeTransitMetadata(callback.View.PrivateMetadata)
	if err != nil {
		http.Error(w, "Invalid private metadata", http.StatusBadRequest)
		return
	}

	if _, err := h.orch.Submit(r.Context(), meta, submissionFromState(callback.View.State)); err != nil {
		h.orch.Notify(r.Context(), meta.ChannelID, meta.UserID, err)
	}
	w.WriteHeader(http.StatusOK)
}

func pendingText(pending []string) string {
	if len(pending) == 0 {
		return "Everyone has posted today."
	}
	mentions := make([]string, len(pending))
	for i, id := range pending {
		mentions[i] = "<@" + id + ">"
	}
	return "Still waiting on: " + strings.Join(mentions, ", ")
}

func respondEphemeral(w http.ResponseWriter, text string) {
	respondJSON(w, slack.Msg{ResponseType: slack.ResponseTypeEphemeral, Text: text})
}

func respondJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
