// Package models defines the Riot API payloads the collector reads and the
// records it stores.
package models

import "encoding/json"

// LeagueEntry is one ranked player from league-v4. Older responses carry
// only SummonerID; newer ones carry PUUID directly.
type LeagueEntry struct {
	LeagueID     string `json:"leagueId,omitempty"`
	PUUID        string `json:"puuid,omitempty"`
	SummonerID   string `json:"summonerId,omitempty"`
	QueueType    string `json:"queueType"`
	Tier         string `json:"tier"`
	Rank         string `json:"rank"`
	LeaguePoints int    `json:"leaguePoints"`
	Wins         int    `json:"wins"`
	Losses       int    `json:"losses"`
}

// LeagueList is an apex league (challenger, grandmaster, master).
type LeagueList struct {
	LeagueID string        `json:"leagueId"`
	Tier     string        `json:"tier"`
	Name     string        `json:"name"`
	Queue    string        `json:"queue"`
	Entries  []LeagueEntry `json:"entries"`
}

// Summoner is a summoner-v4 profile.
type Summoner struct {
	ID            string `json:"id,omitempty"`
	PUUID         string `json:"puuid"`
	ProfileIconID int    `json:"profileIconId"`
	SummonerLevel int64  `json:"summonerLevel"`
}

// Account is an account-v1 Riot ID.
type Account struct {
	PUUID    string `json:"puuid"`
	GameName string `json:"gameName,omitempty"`
	TagLine  string `json:"tagLine,omitempty"`
}

// MatchInfo holds the match-v5 fields the collector inspects. The full
// response is kept verbatim in MatchRecord.Payload.
type MatchInfo struct {
	Metadata struct {
		MatchID string `json:"matchId"`
	} `json:"metadata"`
	Info struct {
		QueueID      int    `json:"queueId"`
		GameVersion  string `json:"gameVersion"`
		GameCreation int64  `json:"gameCreation"`
		GameDuration int64  `json:"gameDuration"`
	} `json:"info"`
}

// MatchRecord is a committed match: identity, filter columns and the raw
// payload. Everything but ID and QueueID is opaque to the pipeline.
type MatchRecord struct {
	ID           string          `db:"match_id"`
	QueueID      int             `db:"queue_id"`
	GameVersion  string          `db:"game_version"`
	GameCreation int64           `db:"game_creation"`
	GameDuration int64           `db:"game_duration"`
	Tier         string          `db:"tier"`
	Payload      json.RawMessage `db:"payload"`
}

// NewMatchRecord decodes the inspected fields from a raw match-v5 payload.
func NewMatchRecord(payload []byte, tier string) (MatchRecord, error) {
	var m MatchInfo
	if err := json.Unmarshal(payload, &m); err != nil {
		return MatchRecord{}, err
	}
	return MatchRecord{
		ID:           m.Metadata.MatchID,
		QueueID:      m.Info.QueueID,
		GameVersion:  m.Info.GameVersion,
		GameCreation: m.Info.GameCreation,
		GameDuration: m.Info.GameDuration,
		Tier:         tier,
		Payload:      json.RawMessage(payload),
	}, nil
}
