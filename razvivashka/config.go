package razvivashka

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/razvivashka/bot/razvivashka/database"
)

func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

type Config struct {
	Log    LogConfig         `toml:"log"`
	DB     database.DBConfig `toml:"db"`
	Engine EngineConfig      `toml:"engine"`
	Spaces SpacesConfig      `toml:"spaces"`
}

type LogConfig struct {
	Level     slog.Level `toml:"level"`
	Format    string     `toml:"format"`
	AddSource bool       `toml:"add_source"`
}

// EngineConfig tunes progression behavior.
type EngineConfig struct {
	// Timezone sets the day boundary, e.g. "Europe/Moscow".
	Timezone string `toml:"timezone"`
	// ReferralBonusDays is credited to a referrer per activated referral.
	ReferralBonusDays int `toml:"referral_bonus_days"`
	// AnswerRevealCost is the access-key price of revealing an answer.
	AnswerRevealCost int64 `toml:"answer_reveal_cost"`
}

// SpacesConfig points at the DigitalOcean Spaces bucket holding exercise
// media (pictures for riddles, videos for exercise demos).
type SpacesConfig struct {
	Key       string `toml:"key"`
	Secret    string `toml:"secret"`
	Region    string `toml:"region"`
	Bucket    string `toml:"bucket"`
	MediaRoot string `toml:"mediaroot"`
}

func (c *Config) applyDefaults() {
	if c.Engine.Timezone == "" {
		c.Engine.Timezone = "Europe/Moscow"
	}
	if c.Engine.ReferralBonusDays <= 0 {
		c.Engine.ReferralBonusDays = 5
	}
	if c.Engine.AnswerRevealCost <= 0 {
		c.Engine.AnswerRevealCost = 1
	}
}
