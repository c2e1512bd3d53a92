package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/matome/data/matome.db"
	}
	if cfg.Platforms.Chatwork.BaseURL == "" {
		cfg.Platforms.Chatwork.BaseURL = "https://api.chatwork.com/v2"
	}
	if cfg.Platforms.Chatwork.MaxRooms == 0 {
		cfg.Platforms.Chatwork.MaxRooms = 5
	}
	if cfg.Platforms.Notion.BaseURL == "" {
		cfg.Platforms.Notion.BaseURL = "https://api.notion.com/v1"
	}
	if cfg.Platforms.Notion.Version == "" {
		cfg.Platforms.Notion.Version = "2022-06-28"
	}
	if cfg.Sync.MaxMessages == 0 {
		cfg.Sync.MaxMessages = 100
	}
	if cfg.Sync.TimeoutSeconds == 0 {
		cfg.Sync.TimeoutSeconds = 120
	}
	if cfg.Sync.MaxConcurrency == 0 {
		cfg.Sync.MaxConcurrency = 4
	}
	if cfg.Search.DefaultPerPage == 0 {
		cfg.Search.DefaultPerPage = 20
	}
	if cfg.Search.MaxPerPage == 0 {
		cfg.Search.MaxPerPage = 100
	}
	if cfg.Search.TopQueries == 0 {
		cfg.Search.TopQueries = 10
	}
}
