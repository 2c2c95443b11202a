package entity

import "time"

type Participant struct {
	ConnectionID string `json:"-"`
	DisplayName  string `json:"display_name"`
	Symbol       Mark   `json:"symbol"`
	Bot          bool   `json:"bot,omitempty"`
	BotDepth     int    `json:"-"`
}

type Match struct {
	ID        string       `json:"id"`
	Host      Participant  `json:"host"`
	Guest     *Participant `json:"guest,omitempty"`
	State     GameState    `json:"state"`
	CreatedAt time.Time    `json:"created_at"`

	// Version goes up on every change and never goes back, restarts included.
	Version uint64 `json:"version"`
}

type MatchInfo struct {
	ID        string    `json:"match_id"`
	HostName  string    `json:"host_name"`
	HasGuest  bool      `json:"has_guest"`
	CreatedAt time.Time `json:"created_at"`
}

func NewMatch(id string, host Participant, createdAt time.Time) *Match {
	host.Symbol = PlayerX

	return &Match{
		ID:        id,
		Host:      host,
		State:     NewGameState(),
		CreatedAt: createdAt,
	}
}

func (that *Match) Clone() *Match {
	clone := *that
	clone.State = that.State.Clone()
	if that.Guest != nil {
		guest := *that.Guest
		clone.Guest = &guest
	}
	return &clone
}

func (that *Match) Info() MatchInfo {
	return MatchInfo{
		ID:        that.ID,
		HostName:  that.Host.DisplayName,
		HasGuest:  that.HasGuest(),
		CreatedAt: that.CreatedAt,
	}
}

func (that *Match) HasGuest() bool {
	return that.Guest != nil
}

// IsWaiting reports whether the match still waits for its guest.
func (that *Match) IsWaiting() bool {
	return that.Guest == nil
}

func (that *Match) IsWithBot() bool {
	return that.Guest != nil && that.Guest.Bot
}

// Participant resolves a connection id to the seat it occupies.
func (that *Match) Participant(connectionID string) (*Participant, bool) {
	if connectionID == "" {
		return nil, false
	}

	if that.Host.ConnectionID == connectionID {
		return &that.Host, true
	}

	if that.Guest != nil && !that.Guest.Bot && that.Guest.ConnectionID == connectionID {
		return that.Guest, true
	}

	return nil, false
}

// Opponent returns the seat facing the given symbol, if it is taken.
func (that *Match) Opponent(symbol Mark) (*Participant, bool) {
	if symbol == PlayerO {
		return &that.Host, true
	}

	if that.Guest == nil {
		return nil, false
	}

	return that.Guest, true
}

// Participants lists the occupied seats, host first.
func (that *Match) Participants() []Participant {
	participants := []Participant{that.Host}
	if that.Guest != nil {
		participants = append(participants, *that.Guest)
	}
	return participants
}

func (that *Match) IsExpired(now time.Time, ttl time.Duration) bool {
	return now.Sub(that.CreatedAt) > ttl
}
