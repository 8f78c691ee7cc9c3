// Package assistant generates sales replies, co-pilot suggestions and campaign copy with Mistral.
package assistant

import (
	"context"
	"encoding/json"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"whatsapp-sales-workers/internal/common/logger"
	"whatsapp-sales-workers/internal/models"
)

const (
	HistoryLimit = 10
	BatchSize    = 10
)

// KnowledgeSource loads the catalog material for prompts.
type KnowledgeSource interface {
	ActiveProducts(ctx context.Context) ([]models.Product, error)
	ActiveGoals(ctx context.Context) ([]models.Goal, error)
	BrainDocuments(ctx context.Context) ([]models.BrainDocument, error)
}

type Config struct {
	Temperature         float64
	MaxTokens           int
	CampaignTemperature float64
	CampaignMaxTokens   int
	BatchInterval       time.Duration
}

func DefaultConfig() Config {
	return Config{
		Temperature:         0.7,
		MaxTokens:           500,
		CampaignTemperature: 0.8,
		CampaignMaxTokens:   300,
		BatchInterval:       time.Second,
	}
}

// Suggestion is one co-pilot reply proposal.
type Suggestion struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

// Generated is the outcome for one campaign recipient.
type Generated struct {
	Recipient models.Recipient `json:"contact"`
	Message   string           `json:"message"`
	Success   bool             `json:"success"`
	Error     string           `json:"error,omitempty"`
}

type Assistant struct {
	llm       Completer
	knowledge KnowledgeSource
	cfg       Config
	limiter   *rate.Limiter
	logger    logger.Logger
}

func New(llm Completer, knowledge KnowledgeSource, cfg Config, log logger.Logger) *Assistant {
	def := DefaultConfig()
	if cfg.Temperature <= 0 {
		cfg.Temperature = def.Temperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.CampaignTemperature <= 0 {
		cfg.CampaignTemperature = def.CampaignTemperature
	}
	if cfg.CampaignMaxTokens <= 0 {
		cfg.CampaignMaxTokens = def.CampaignMaxTokens
	}
	limit := rate.Inf
	if cfg.BatchInterval > 0 {
		limit = rate.Every(cfg.BatchInterval)
	}
	return &Assistant{
		llm:       llm,
		knowledge: knowledge,
		cfg:       cfg,
		limiter:   rate.NewLimiter(limit, 1),
		logger:    log.WithFields(map[string]interface{}{"component": "assistant"}),
	}
}

// Knowledge gathers products, goals and documents. Load failures degrade to an empty section.
func (a *Assistant) Knowledge(ctx context.Context) Knowledge {
	var k Knowledge
	var err error
	if k.Products, err = a.knowledge.ActiveProducts(ctx); err != nil {
		a.logger.Warn("catalog unavailable for prompt", map[string]interface{}{"error": err})
	}
	if k.Goals, err = a.knowledge.ActiveGoals(ctx); err != nil {
		a.logger.Warn("goals unavailable for prompt", map[string]interface{}{"error": err})
	}
	if k.Documents, err = a.knowledge.BrainDocuments(ctx); err != nil {
		a.logger.Warn("brain documents unavailable for prompt", map[string]interface{}{"error": err})
	}
	return k
}

// GenerateReply answers message in the context of the last HistoryLimit messages.
// On failure it returns an empty reply and the error; nothing should be sent.
func (a *Assistant) GenerateReply(ctx context.Context, contact *models.Contact, message string, history []models.Message) (string, error) {
	system := SystemPrompt(a.Knowledge(ctx)) + "\n"
	if contact != nil {
		system += "Contact: " + orDefault(contact.DisplayName(), "Inconnu")
	}

	msgs := []Message{{Role: "system", Content: system}}
	for _, m := range lastN(history, HistoryLimit) {
		role := "user"
		if m.FromMe {
			role = "assistant"
		}
		msgs = append(msgs, Message{Role: role, Content: m.Content})
	}
	msgs = append(msgs, Message{Role: "user", Content: message})

	reply, err := a.llm.Complete(ctx, msgs, Options{Temperature: a.cfg.Temperature, MaxTokens: a.cfg.MaxTokens})
	if err != nil {
		a.logger.Error("reply generation failed", map[string]interface{}{"error": err})
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

var jsonArray = regexp.MustCompile(`\[[\s\S]*\]`)

// Suggestions proposes three replies. Unparseable output becomes a single suggestion.
func (a *Assistant) Suggestions(ctx context.Context, history []models.Message, contactName string) ([]Suggestion, error) {
	msgs := []Message{
		{Role: "system", Content: suggestionsSystemPrompt(a.Knowledge(ctx), contactName)},
		{Role: "user", Content: "Historique:\n" + historyTranscript(history) + "\n\nGénère 3 suggestions de réponse:"},
	}
	content, err := a.llm.Complete(ctx, msgs, Options{Temperature: a.cfg.Temperature, MaxTokens: a.cfg.MaxTokens})
	if err != nil {
		return nil, err
	}
	return ParseSuggestions(content), nil
}

func ParseSuggestions(content string) []Suggestion {
	if raw := jsonArray.FindString(content); raw != "" {
		var out []Suggestion
		if err := json.Unmarshal([]byte(raw), &out); err == nil && len(out) > 0 {
			return out
		}
	}
	return []Suggestion{{ID: 1, Text: strings.TrimSpace(content)}}
}

// GenerateCampaignMessages writes one message per recipient, BatchSize at a time,
// with batches paced by the limiter. Results keep the recipients' order.
func (a *Assistant) GenerateCampaignMessages(ctx context.Context, template string, recipients []models.Recipient) ([]Generated, error) {
	products, err := a.knowledge.ActiveProducts(ctx)
	if err != nil {
		a.logger.Warn("catalog unavailable for campaign prompt", map[string]interface{}{"error": err})
	}
	system := campaignSystemPrompt(template, products)
	opts := Options{Temperature: a.cfg.CampaignTemperature, MaxTokens: a.cfg.CampaignMaxTokens}

	out := make([]Generated, len(recipients))
	for start := 0; start < len(recipients); start += BatchSize {
		if err := a.limiter.Wait(ctx); err != nil {
			return out[:start], err
		}
		end := start + BatchSize
		if end > len(recipients) {
			end = len(recipients)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				r := recipients[i]
				msg, err := a.llm.Complete(ctx, []Message{
					{Role: "system", Content: system},
					{Role: "user", Content: campaignPrompt(r)},
				}, opts)
				if err != nil {
					out[i] = Generated{Recipient: r, Error: err.Error()}
					return
				}
				out[i] = Generated{Recipient: r, Message: strings.TrimSpace(msg), Success: true}
			}(i)
		}
		wg.Wait()
	}
	return out, nil
}

func lastN(history []models.Message, n int) []models.Message {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func compactJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
