package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rocketscienceinc/tictactics-backend/internal/entity"
)

// Inbound actions.
const (
	actionCreateMatch    = "create_match"
	actionCreateBotMatch = "create_bot_match"
	actionGetMatchInfo   = "get_match_info"
	actionJoinMatch      = "join_match"
	actionSubmitMove     = "submit_move"
	actionRestartMatch   = "restart_match"
	actionLeaveMatch     = "leave_match"
)

// Outbound broadcasts.
const (
	actionConnected         = "connected"
	actionStateUpdate       = "state_update"
	actionMatchStarted      = "match_started"
	actionMatchRestarted    = "match_restarted"
	actionParticipantJoined = "participant_joined"
	actionParticipantLeft   = "participant_left"
	actionMatchExpired      = "match_expired"
	actionError             = "error"
)

// Message is the envelope of every frame in both directions.
type Message struct {
	Action  string          `json:"action"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type CreateMatchRequest struct {
	DisplayName string `json:"display_name"`
	Difficulty  string `json:"difficulty,omitempty"`
}

type MatchRequest struct {
	MatchID string `json:"match_id"`
}

type JoinMatchRequest struct {
	MatchID     string `json:"match_id"`
	DisplayName string `json:"display_name"`
}

type SubmitMoveRequest struct {
	MatchID  string `json:"match_id"`
	Position *int   `json:"position"`
}

type ConnectedPayload struct {
	ConnectionID string `json:"connection_id"`
}

type MatchCreatedPayload struct {
	MatchID string `json:"match_id"`
}

type MatchInfoPayload struct {
	ID        string    `json:"match_id"`
	HostName  string    `json:"host_name"`
	HasGuest  bool      `json:"has_guest"`
	CreatedAt time.Time `json:"created_at"`
}

type ParticipantPayload struct {
	DisplayName string      `json:"display_name"`
	Symbol      entity.Mark `json:"symbol"`
	Bot         bool        `json:"bot,omitempty"`
}

type JoinedPayload struct {
	MatchID      string               `json:"match_id"`
	HostName     string               `json:"host_name"`
	Participants []ParticipantPayload `json:"participants"`
}

type MatchStartedPayload struct {
	MatchID      string               `json:"match_id"`
	Participants []ParticipantPayload `json:"participants"`
}

type ParticipantEventPayload struct {
	MatchID     string `json:"match_id"`
	DisplayName string `json:"display_name"`
	MatchClosed bool   `json:"match_closed,omitempty"`
}

type MatchEventPayload struct {
	MatchID string `json:"match_id"`
}

type ErrorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func participantsPayload(match *entity.Match) []ParticipantPayload {
	participants := match.Participants()

	payload := make([]ParticipantPayload, 0, len(participants))
	for _, participant := range participants {
		payload = append(payload, ParticipantPayload{
			DisplayName: participant.DisplayName,
			Symbol:      participant.Symbol,
			Bot:         participant.Bot,
		})
	}

	return payload
}

func encodeMessage(action, id string, payload any) ([]byte, error) {
	rawPayload, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	raw, err := json.Marshal(Message{
		Action:  action,
		ID:      id,
		Payload: rawPayload,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	return raw, nil
}
