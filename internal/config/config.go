package config

import "os"

// Config is the full process configuration, read from the environment.
type Config struct {
	Port          string
	MongoURI      string
	MongoDatabase string
	RedisAddr     string
	AMQPURL       string
	AMQPExchange  string
	LogLevel      string
	LogFormat     string

	Matcher *MatcherConfig
	Scoring *ScoringConfig
	Policy  *PolicyConfig
}

// ScoringConfig tunes the evaluation engine. The defaults give must-have
// coverage 7 of the 10 points, half a point per bonus item capped at 3, and
// a full point of penalty per asserted misconception.
type ScoringConfig struct {
	MustWeight             float64
	BonusPerPoint          float64
	BonusCap               float64
	PenaltyPerFlag         float64
	FollowUpScoreThreshold float64
}

// DefaultScoringConfig returns the default scoring weights.
func DefaultScoringConfig() *ScoringConfig {
	return &ScoringConfig{
		MustWeight:             7.0,
		BonusPerPoint:          0.5,
		BonusCap:               3.0,
		PenaltyPerFlag:         1.0,
		FollowUpScoreThreshold: 7.0,
	}
}

// PolicyConfig bounds the conversation and tunes the decision rules.
type PolicyConfig struct {
	MaxFollowUpDepth    int
	MaxQuestions        int
	LowScoreThreshold   float64
	HighScoreThreshold  float64
	LowScoreStreakLimit int
	FocusPointCap       int

	// ResetStreakOnDifficultyDrop controls whether a DECREASE_DIFFICULTY
	// decision also clears the consecutive low-score streak.
	ResetStreakOnDifficultyDrop bool
}

// DefaultPolicyConfig returns the default session limits.
func DefaultPolicyConfig() *PolicyConfig {
	return &PolicyConfig{
		MaxFollowUpDepth:            getEnvIntOrDefault("MAX_FOLLOWUP_DEPTH", 2),
		MaxQuestions:                getEnvIntOrDefault("MAX_QUESTIONS", 10),
		LowScoreThreshold:           5.0,
		HighScoreThreshold:          8.5,
		LowScoreStreakLimit:         3,
		FocusPointCap:               2,
		ResetStreakOnDifficultyDrop: true,
	}
}

// Load reads the full configuration from the environment.
func Load() *Config {
	return &Config{
		Port:          getEnvOrDefault("PORT", "8080"),
		MongoURI:      getEnvOrDefault("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnvOrDefault("MONGO_DATABASE", "prepdeck"),
		RedisAddr:     stripRedisScheme(getEnvOrDefault("REDIS_URI", "localhost:6379")),
		AMQPURL:       os.Getenv("AMQP_URL"),
		AMQPExchange:  getEnvOrDefault("AMQP_EXCHANGE", "prepdeck.jobs"),
		LogLevel:      getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:     getEnvOrDefault("LOG_FORMAT", "json"),
		Matcher:       DefaultMatcherConfig(),
		Scoring:       DefaultScoringConfig(),
		Policy:        DefaultPolicyConfig(),
	}
}

func stripRedisScheme(addr string) string {
	if len(addr) > 8 && addr[:8] == "redis://" {
		return addr[8:]
	}
	return addr
}
