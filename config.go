package procureagent

import "time"

// MaxSessionTurns bounds every negotiation session.
const MaxSessionTurns = 15

type ModelConfig struct {
	ModelID     string  `env:"MODEL_ID,default=us.anthropic.claude-sonnet-4-20250514-v1:0"`
	MaxTokens   int32   `env:"MAX_TOKENS,default=1024"`
	Temperature float32 `env:"TEMPERATURE,default=0.2"`
	TopP        float32 `env:"TOP_P,default=0.9"`
}

type AgentConfig struct {
	APIBase              string        `env:"NEGOTIATION_API_BASE,default=http://localhost:8000/api"`
	TeamID               string        `env:"NEGOTIATION_TEAM_ID"`
	MaxSessionTurns      int           `env:"MAX_SESSION_TURNS,default=15"`
	TransportMaxAttempts uint          `env:"TRANSPORT_MAX_ATTEMPTS,default=3"`
	TransportTimeout     time.Duration `env:"TRANSPORT_TIMEOUT,default=30s"`
	CapabilityBackend    string        `env:"CAPABILITY_BACKEND,default=bedrock"`
	BaseOllamaEndpoint   string        `env:"BASE_OLLAMA_ENDPOINT,default=http://localhost:11434"`
	DocumentsDir         string        `env:"DOCUMENTS_DIR,default=data"`
	DocumentsS3Bucket    string        `env:"DOCUMENTS_S3_BUCKET"`
	DocumentsS3Prefix    string        `env:"DOCUMENTS_S3_PREFIX"`
	ReportsDir           string        `env:"REPORTS_DIR"`
	ReportsS3Bucket      string        `env:"REPORTS_S3_BUCKET"`
}

// SessionTurns clamps the configured turn limit to (0, MaxSessionTurns].
func (c AgentConfig) SessionTurns() int {
	if c.MaxSessionTurns <= 0 || c.MaxSessionTurns > MaxSessionTurns {
		return MaxSessionTurns
	}
	return c.MaxSessionTurns
}

type NotifyConfig struct {
	WebhookURL      string `env:"PROGRESS_WEBHOOK_URL"`
	SlackWebhookURL string `env:"SLACK_WEBHOOK_URL"`
	SlackChannel    string `env:"SLACK_CHANNEL,default=#procurement"`
	NATSURL         string `env:"NATS_URL"`
	NATSSubject     string `env:"NATS_SUBJECT,default=procurement.progress"`
}
