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
		cfg.Storage.DatabasePath = "/usr/local/var/podbor/data/podbor.db"
	}
	if cfg.Catalog.Path == "" {
		cfg.Catalog.Path = "/usr/local/var/podbor/data/dataset.csv"
	}
	if cfg.Search.Threshold == 0 {
		cfg.Search.Threshold = 0.2
	}
	if cfg.Search.TopN == 0 {
		cfg.Search.TopN = 3
	}
	if cfg.Search.CollapseScore == 0 {
		cfg.Search.CollapseScore = 0.45
	}
	if cfg.Search.PopularLimit == 0 {
		cfg.Search.PopularLimit = 3
	}
	if cfg.Watch.DebounceMS == 0 {
		cfg.Watch.DebounceMS = 400
	}
	// Watch.Enabled defaults to true when unset (nil).
}
