package config

// Direction values accepted by sync.direction.
const (
	DirectionOneWay        = "one-way"
	DirectionBidirectional = "bidirectional"
)

const (
	defaultDataDir           = "~/.local/share/anisync"
	defaultLogDir            = "~/.local/share/anisync/logs"
	defaultAnnictBaseURL     = "https://api.annict.com"
	defaultAniListBaseURL    = "https://graphql.anilist.co"
	defaultPerPage           = 50
	defaultRequestTimeout    = 30
	defaultMatchThreshold    = 0.75
	defaultWorkerLimit       = 5
	defaultNotifyTimeout     = 10
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultRelationCacheFile = "relations.json"
	defaultHistoryFile       = "history.db"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Annict: Annict{
			BaseURL:        defaultAnnictBaseURL,
			PerPage:        defaultPerPage,
			RequestTimeout: defaultRequestTimeout,
		},
		AniList: AniList{
			BaseURL:        defaultAniListBaseURL,
			RequestTimeout: defaultRequestTimeout,
		},
		Sync: Sync{
			Direction:      DirectionOneWay,
			MatchThreshold: defaultMatchThreshold,
			WorkerLimit:    defaultWorkerLimit,
		},
		History: History{
			Enabled: true,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
