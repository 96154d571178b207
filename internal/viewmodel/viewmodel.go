// Package viewmodel defines the view-layer types for the status page.
// These types are free of game-logic imports so page components can use
// them without creating an import cycle.
package viewmodel

// StatusPage holds data for the operator status page.
type StatusPage struct {
	Title         string
	GeneratedAt   string
	Online        int
	ActiveGames   int
	PlayersInGame int
	GamesStarted  int
	Queues        []QueueRow
	Lobbies       []LobbyRow
	Leaders       []ScoreEntry
}

// QueueRow is one matchmaking queue. OpenCode is the fullest public lobby
// of that mode still waiting for players, if any.
type QueueRow struct {
	Mode     string
	Waiting  int
	OpenCode string
}

// LobbyRow describes a lobby. Code is empty for private lobbies.
type LobbyRow struct {
	Code       string
	Mode       string
	Players    int
	MaxPlayers int
	Status     string
}

// ScoreEntry holds a leaderboard line for rendering.
type ScoreEntry struct {
	Rank    int
	Name    string
	Country string
	Points  int64
}
