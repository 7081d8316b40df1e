package resilience

import "time"

// Operation names shared by callers and per-operation policy overrides.
const (
	OperationOllamaGenerate = "ollama.generate"
	OperationOpenAIChat     = "openai.chat_completion"
	OperationPieceStorePut  = "piecestore.upload"
	OperationNeo4jRun       = "neo4j.run"
	OperationRSSFetch       = "rss.fetch"
	OperationNATSPublish    = "nats.publish"
)

// RetryPolicy bounds retries of one operation. Zero fields inherit the
// executor-wide values.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64

	// Overrides replaces the retry policy for named operations.
	Overrides map[string]RetryPolicy

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32
}

// ExtractionRetryPolicy is the default for structured generation calls,
// which take seconds and fail under model load rather than network blips.
func ExtractionRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: time.Second,
		MaxBackoff:     8 * time.Second,
		Multiplier:     2.0,
	}
}

func DefaultConfig() Config {
	llm := ExtractionRetryPolicy()
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 200 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Second,
		RetryMultiplier:     2.0,

		Overrides: map[string]RetryPolicy{
			OperationOllamaGenerate: llm,
			OperationOpenAIChat:     llm,
		},

		BreakerEnabled:          true,
		BreakerMinRequests:      5,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 1,
	}
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()

	if out.RetryMaxAttempts <= 0 {
		out.RetryMaxAttempts = def.RetryMaxAttempts
	}
	if out.RetryInitialBackoff <= 0 {
		out.RetryInitialBackoff = def.RetryInitialBackoff
	}
	if out.RetryMaxBackoff <= 0 {
		out.RetryMaxBackoff = def.RetryMaxBackoff
	}
	if out.RetryMultiplier < 1.0 {
		out.RetryMultiplier = def.RetryMultiplier
	}

	base := RetryPolicy{
		MaxAttempts:    out.RetryMaxAttempts,
		InitialBackoff: out.RetryInitialBackoff,
		MaxBackoff:     out.RetryMaxBackoff,
		Multiplier:     out.RetryMultiplier,
	}.clamp()
	out.RetryMaxBackoff = base.MaxBackoff

	overrides := make(map[string]RetryPolicy, len(c.Overrides))
	for op, policy := range c.Overrides {
		overrides[op] = policy.inherit(base)
	}
	out.Overrides = overrides

	if out.BreakerMinRequests == 0 {
		out.BreakerMinRequests = def.BreakerMinRequests
	}
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if out.BreakerOpenTimeout <= 0 {
		out.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	if out.BreakerHalfOpenMaxCalls == 0 {
		out.BreakerHalfOpenMaxCalls = def.BreakerHalfOpenMaxCalls
	}

	return out
}

// retryPolicy returns the normalized policy for operation.
func (c Config) retryPolicy(operation string) RetryPolicy {
	if policy, ok := c.Overrides[operation]; ok {
		return policy
	}
	return RetryPolicy{
		MaxAttempts:    c.RetryMaxAttempts,
		InitialBackoff: c.RetryInitialBackoff,
		MaxBackoff:     c.RetryMaxBackoff,
		Multiplier:     c.RetryMultiplier,
	}
}

func (p RetryPolicy) inherit(base RetryPolicy) RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = base.MaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = base.InitialBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = base.MaxBackoff
	}
	if p.Multiplier < 1.0 {
		p.Multiplier = base.Multiplier
	}
	return p.clamp()
}

func (p RetryPolicy) clamp() RetryPolicy {
	if p.MaxBackoff < p.InitialBackoff {
		p.MaxBackoff = p.InitialBackoff
	}
	return p
}
