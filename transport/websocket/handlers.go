package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rocketscienceinc/tictactics-backend/internal/apperror"
	"github.com/rocketscienceinc/tictactics-backend/internal/entity"
	"github.com/rocketscienceinc/tictactics-backend/internal/service"
	"github.com/rocketscienceinc/tictactics-backend/internal/tictactoe"
	"github.com/rocketscienceinc/tictactics-backend/internal/usecase"
)

var difficulties = map[string]int{
	"easy":   service.DepthEasy,
	"medium": service.DepthMedium,
	"hard":   service.DepthHard,
}

// handleMessage - decodes one frame and dispatches it to its action handler.
func (that *Server) handleMessage(ctx context.Context, sender *client, raw []byte) {
	log := that.logger.With("method", "handleMessage", "connection_id", sender.id)

	var message Message
	if err := json.Unmarshal(raw, &message); err != nil {
		log.Warn("failed to unmarshal message", "error", err)
		that.sendError(sender, actionError, "", fmt.Errorf("malformed message: %w", apperror.ErrInvalidInput))
		return
	}

	handler, ok := that.handlers[message.Action]
	if !ok {
		log.Warn("unknown action", "action", message.Action)
		that.sendError(sender, message.Action, message.ID, fmt.Errorf("unknown action %q: %w", message.Action, apperror.ErrInvalidInput))
		return
	}

	if err := handler(ctx, sender, &message); err != nil {
		log.Error("error processing message", "action", message.Action, "error", err)
	}
}

func (that *Server) handleCreateMatch(ctx context.Context, sender *client, msg *Message) error {
	var request CreateMatchRequest
	if err := decodePayload(msg, &request); err != nil {
		that.sendError(sender, msg.Action, msg.ID, err)
		return nil
	}

	match, err := that.uMatch.CreateMatch(ctx, sender.id, request.DisplayName)
	if err != nil {
		return that.replyError(sender, msg, err)
	}

	that.subscribe(sender.id, match.ID)

	that.sendTo(sender, msg.Action, msg.ID, MatchCreatedPayload{MatchID: match.ID})
	that.sendState(sender.id, NewStateView(match, match.Host, tictactoe.NoEviction))

	return nil
}

func (that *Server) handleCreateBotMatch(ctx context.Context, sender *client, msg *Message) error {
	var request CreateMatchRequest
	if err := decodePayload(msg, &request); err != nil {
		that.sendError(sender, msg.Action, msg.ID, err)
		return nil
	}

	depth, err := that.depthFor(request.Difficulty)
	if err != nil {
		that.sendError(sender, msg.Action, msg.ID, err)
		return nil
	}

	match, err := that.uMatch.CreateBotMatch(ctx, sender.id, request.DisplayName, depth)
	if err != nil {
		return that.replyError(sender, msg, err)
	}

	that.subscribe(sender.id, match.ID)

	that.sendTo(sender, msg.Action, msg.ID, MatchCreatedPayload{MatchID: match.ID})
	that.sendTo(sender, actionMatchStarted, "", MatchStartedPayload{
		MatchID:      match.ID,
		Participants: participantsPayload(match),
	})
	that.sendState(sender.id, NewStateView(match, match.Host, tictactoe.NoEviction))

	return nil
}

func (that *Server) handleGetMatchInfo(ctx context.Context, sender *client, msg *Message) error {
	var request MatchRequest
	if err := decodePayload(msg, &request); err != nil {
		that.sendError(sender, msg.Action, msg.ID, err)
		return nil
	}

	info, err := that.uMatch.GetMatchInfo(ctx, request.MatchID)
	if err != nil {
		return that.replyError(sender, msg, err)
	}

	that.sendTo(sender, msg.Action, msg.ID, MatchInfoPayload(info))

	return nil
}

func (that *Server) handleJoinMatch(ctx context.Context, sender *client, msg *Message) error {
	log := that.logger.With("method", "handleJoinMatch")

	var request JoinMatchRequest
	if err := decodePayload(msg, &request); err != nil {
		that.sendError(sender, msg.Action, msg.ID, err)
		return nil
	}

	match, err := that.uMatch.JoinMatch(ctx, request.MatchID, sender.id, request.DisplayName)
	if err != nil {
		return that.replyError(sender, msg, err)
	}

	that.subscribe(sender.id, match.ID)

	that.sendTo(sender, msg.Action, msg.ID, JoinedPayload{
		MatchID:      match.ID,
		HostName:     match.Host.DisplayName,
		Participants: participantsPayload(match),
	})

	that.broadcast(match, actionParticipantJoined, ParticipantEventPayload{
		MatchID:     match.ID,
		DisplayName: match.Guest.DisplayName,
	})
	that.broadcastState(match, tictactoe.NoEviction)
	that.broadcast(match, actionMatchStarted, MatchStartedPayload{
		MatchID:      match.ID,
		Participants: participantsPayload(match),
	})

	log.Info("Player joined match", "match_id", match.ID)

	return nil
}

// handleSubmitMove - rejected moves are dropped without a reply.
func (that *Server) handleSubmitMove(ctx context.Context, sender *client, msg *Message) error {
	log := that.logger.With("method", "handleSubmitMove")

	var request SubmitMoveRequest
	if err := decodePayload(msg, &request); err != nil {
		that.sendError(sender, msg.Action, msg.ID, err)
		return nil
	}

	if request.Position == nil {
		that.sendError(sender, msg.Action, msg.ID, fmt.Errorf("position is required: %w", apperror.ErrInvalidInput))
		return nil
	}

	result, err := that.uMatch.SubmitMove(ctx, request.MatchID, sender.id, *request.Position)
	if errors.Is(err, apperror.ErrMoveRejected) {
		log.Debug("move dropped", "match_id", request.MatchID, "connection_id", sender.id, "reason", err)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to submit move: %w", err)
	}

	that.broadcastState(result.Match, result.Evicted)

	if result.IsBotToMove() {
		go that.playBotTurn(result.Match.ID)
	}

	return nil
}

func (that *Server) playBotTurn(matchID string) {
	log := that.logger.With("method", "playBotTurn", "match_id", matchID)

	result, err := that.uMatch.PlayBotTurn(that.baseCtx, matchID)
	if errors.Is(err, apperror.ErrMoveRejected) || errors.Is(err, apperror.ErrMatchNotFound) {
		log.Debug("bot move dropped", "reason", err)
		return
	}

	if err != nil {
		log.Error("bot failed to move", "error", err)
		return
	}

	that.broadcastState(result.Match, result.Evicted)
}

func (that *Server) handleRestartMatch(ctx context.Context, sender *client, msg *Message) error {
	var request MatchRequest
	if err := decodePayload(msg, &request); err != nil {
		that.sendError(sender, msg.Action, msg.ID, err)
		return nil
	}

	match, err := that.uMatch.Restart(ctx, request.MatchID, sender.id)
	if err != nil {
		return that.replyError(sender, msg, err)
	}

	that.broadcast(match, actionMatchRestarted, MatchEventPayload{MatchID: match.ID})
	that.broadcastState(match, tictactoe.NoEviction)

	return nil
}

func (that *Server) handleLeaveMatch(ctx context.Context, sender *client, msg *Message) error {
	var request MatchRequest
	if err := decodePayload(msg, &request); err != nil {
		that.sendError(sender, msg.Action, msg.ID, err)
		return nil
	}

	departure, err := that.uMatch.Leave(ctx, request.MatchID, sender.id)
	if err != nil {
		return that.replyError(sender, msg, err)
	}

	that.notifyDeparture(*departure)

	return nil
}

// handleDisconnect - closes every match of the dropped connection and tells the opponents.
func (that *Server) handleDisconnect(c *client) {
	log := that.logger.With("method", "handleDisconnect", "connection_id", c.id)

	c.close()

	for _, departure := range that.uMatch.Disconnect(that.baseCtx, c.id, that.subscribedMatches(c.id)) {
		that.notifyDeparture(departure)
	}

	that.unregister(c)

	log.Info("player disconnected")
}

func (that *Server) notifyDeparture(departure usecase.Departure) {
	that.unsubscribe(departure.Departed.ConnectionID, departure.MatchID)

	remaining := departure.Remaining
	if remaining == nil || !that.isSubscribed(remaining.ConnectionID, departure.MatchID) {
		return
	}

	that.sendToConnection(remaining.ConnectionID, actionParticipantLeft, ParticipantEventPayload{
		MatchID:     departure.MatchID,
		DisplayName: departure.Departed.DisplayName,
		MatchClosed: departure.Deleted,
	})

	if departure.Deleted {
		that.unsubscribe(remaining.ConnectionID, departure.MatchID)
		return
	}

	if departure.Match != nil {
		that.sendState(remaining.ConnectionID, NewStateView(departure.Match, *remaining, tictactoe.NoEviction))
	}
}

func (that *Server) depthFor(difficulty string) (int, error) {
	if difficulty == "" {
		return that.defaultDepth, nil
	}

	depth, ok := difficulties[difficulty]
	if !ok {
		return 0, fmt.Errorf("unknown difficulty %q: %w", difficulty, apperror.ErrInvalidInput)
	}

	return depth, nil
}

// broadcastState sends each human participant its own view of the match.
func (that *Server) broadcastState(match *entity.Match, evicted int) {
	for _, participant := range match.Participants() {
		if participant.Bot || !that.isSubscribed(participant.ConnectionID, match.ID) {
			continue
		}

		that.sendState(participant.ConnectionID, NewStateView(match, participant, evicted))
	}
}

// sendState queues a state_update unless the connection was already sent a
// newer version of the match. Operations on one match finish on different
// goroutines in any order.
func (that *Server) sendState(connectionID string, view StateView) {
	that.stateMutex.Lock()
	defer that.stateMutex.Unlock()

	versions, ok := that.stateVersions[connectionID]
	if !ok {
		versions = make(map[string]uint64)
		that.stateVersions[connectionID] = versions
	}

	if last, seen := versions[view.MatchID]; seen && view.Version < last {
		that.logger.Debug("outdated state dropped", "connection_id", connectionID, "match_id", view.MatchID,
			"version", view.Version, "last_version", last)
		return
	}

	versions[view.MatchID] = view.Version
	that.sendToConnection(connectionID, actionStateUpdate, view)
}

func (that *Server) broadcast(match *entity.Match, action string, payload any) {
	for _, participant := range match.Participants() {
		if participant.Bot || !that.isSubscribed(participant.ConnectionID, match.ID) {
			continue
		}

		that.sendToConnection(participant.ConnectionID, action, payload)
	}
}

func (that *Server) sendToConnection(connectionID, action string, payload any) {
	c, ok := that.client(connectionID)
	if !ok {
		that.logger.Warn("connection not found", "connection_id", connectionID, "action", action)
		return
	}

	that.sendTo(c, action, "", payload)
}

func (that *Server) sendTo(c *client, action, id string, payload any) {
	message, err := encodeMessage(action, id, payload)
	if err != nil {
		that.logger.Error("failed to encode message", "action", action, "error", err)
		return
	}

	c.enqueue(message)
}

// replyError answers client mistakes and passes internal failures up for logging.
func (that *Server) replyError(sender *client, msg *Message, err error) error {
	that.sendError(sender, msg.Action, msg.ID, err)

	if apperror.Code(err) == apperror.CodeInternal {
		return err
	}

	return nil
}

func (that *Server) sendError(c *client, action, id string, err error) {
	payload := ErrorPayload{Error: apperror.Code(err)}
	if payload.Error != apperror.CodeInternal {
		payload.Message = err.Error()
	}

	that.sendTo(c, action, id, payload)
}

func decodePayload(msg *Message, target any) error {
	if len(msg.Payload) == 0 {
		return fmt.Errorf("payload is required: %w", apperror.ErrInvalidInput)
	}

	if err := json.Unmarshal(msg.Payload, target); err != nil {
		return fmt.Errorf("malformed payload: %w", apperror.ErrInvalidInput)
	}

	return nil
}
