// ABOUTME: Daily inspirational quote from a list of providers with a fixed fallback set
// ABOUTME: The chosen quote is cached per local day in the settings table

package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/2389/mindmatters/internal/store"
)

// QuoteCacheKey is the settings key holding today's quote.
const QuoteCacheKey = "dailyQuote"

// Quote is an inspirational quote.
type Quote struct {
	Text   string `json:"quote"`
	Author string `json:"author"`
}

// FallbackQuotes are used when no provider answers.
var FallbackQuotes = []Quote{
	{"The mind is everything. What you think you become.", "Buddha"},
	{"Your task is not to seek love, but merely to seek and find all the barriers within yourself that you have built against it.", "Rumi"},
	{"Happiness is not something ready-made. It comes from your own actions.", "Dalai Lama"},
	{"The greatest glory in living lies not in never falling, but in rising every time we fall.", "Nelson Mandela"},
	{"In the midst of winter, I found there was, within me, an invincible summer.", "Albert Camus"},
	{"It is during our darkest moments that we must focus to see the light.", "Aristotle"},
	{"You are never too old to set another goal or to dream a new dream.", "C.S. Lewis"},
	{"Peace begins with a smile.", "Mother Teresa"},
	{"The future depends on what you do today.", "Mahatma Gandhi"},
	{"What you get by achieving your goals is not as important as what you become by achieving your goals.", "Zig Ziglar"},
	{"When we are no longer able to change a situation, we are challenged to change ourselves.", "Viktor Frankl"},
	{"Live in the sunshine, swim the sea, drink the wild air.", "Ralph Waldo Emerson"},
}

// QuoteConfig configures a QuoteClient.
type QuoteConfig struct {
	URLs    []string
	Timeout time.Duration
	Client  Doer
	Store   store.Store
	Logger  *slog.Logger
	Now     func() time.Time
	// Pick chooses a fallback index in [0, n). Random when nil.
	Pick func(n int) int
}

// QuoteClient returns one quote per day.
type QuoteClient struct {
	urls   []string
	api    fetcher
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
	pick   func(n int) int
}

// NewQuoteClient creates a QuoteClient.
func NewQuoteClient(cfg QuoteConfig) *QuoteClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	pick := cfg.Pick
	if pick == nil {
		pick = rand.IntN
	}
	return &QuoteClient{
		urls:   cfg.URLs,
		api:    newFetcher(cfg.Client, cfg.Timeout),
		store:  cfg.Store,
		logger: logger.With("component", "quotes"),
		now:    now,
		pick:   pick,
	}
}

type cachedQuote struct {
	Quote Quote  `json:"quote"`
	Day   string `json:"day"`
}

// Daily returns today's quote. A quote fetched earlier today is reused
// unless refresh is set. Providers are tried in order; when all fail a
// fallback quote is returned with SourceFallback.
func (q *QuoteClient) Daily(ctx context.Context, refresh bool) (Quote, Source) {
	today := store.DayOf(q.now())

	if !refresh {
		if c, ok := q.cached(ctx); ok && c.Day == today {
			return c.Quote, SourceCache
		}
	}

	for _, u := range q.urls {
		quote, err := q.fetch(ctx, u)
		if err != nil {
			q.logger.Warn("quote provider failed", "url", u, "error", err)
			continue
		}
		q.remember(ctx, cachedQuote{Quote: quote, Day: today})
		return quote, SourceAPI
	}

	q.logger.Info("all quote providers failed, using fallback")
	return FallbackQuotes[q.pick(len(FallbackQuotes))], SourceFallback
}

func (q *QuoteClient) fetch(ctx context.Context, url string) (Quote, error) {
	var raw json.RawMessage
	if err := q.api.getJSON(ctx, url, &raw); err != nil {
		return Quote{}, err
	}
	quote, err := parseQuote(raw)
	if err != nil {
		return Quote{}, fmt.Errorf("%s: %w", url, err)
	}
	return quote, nil
}

var errQuoteFormat = errors.New("unrecognised quote format")

// parseQuote understands the response shapes of the common free quote APIs:
//
//	[{"q": "...", "a": "..."}]                                  zenquotes
//	{"content": "...", "author": "..."}                         quotable
//	{"quote": {"content": "...", "author": {"name": "..."}}}    quotable mirrors
//	{"data": [{"quoteText": "...", "quoteAuthor": "..."}]}      quote garden
//	[{"text": "...", "author": "..."}]                          type.fit
func parseQuote(raw json.RawMessage) (Quote, error) {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var list []struct {
			Q      string  `json:"q"`
			A      string  `json:"a"`
			Text   string  `json:"text"`
			Author *string `json:"author"`
		}
		if err := json.Unmarshal(raw, &list); err != nil || len(list) == 0 {
			return Quote{}, errQuoteFormat
		}
		item := list[0]
		if item.Q != "" {
			return validQuote(item.Q, item.A)
		}
		author := "Unknown"
		if item.Author != nil && *item.Author != "" {
			author = *item.Author
		}
		return validQuote(item.Text, author)
	}

	var obj struct {
		Content string          `json:"content"`
		Author  json.RawMessage `json:"author"`
		Quote   *struct {
			Content string `json:"content"`
			Author  struct {
				Name string `json:"name"`
			} `json:"author"`
		} `json:"quote"`
		Data []struct {
			QuoteText   string `json:"quoteText"`
			QuoteAuthor string `json:"quoteAuthor"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return Quote{}, errQuoteFormat
	}
	switch {
	case obj.Quote != nil:
		return validQuote(obj.Quote.Content, obj.Quote.Author.Name)
	case obj.Content != "":
		var author string
		_ = json.Unmarshal(obj.Author, &author)
		return validQuote(obj.Content, author)
	case len(obj.Data) > 0:
		return validQuote(obj.Data[0].QuoteText, obj.Data[0].QuoteAuthor)
	}
	return Quote{}, errQuoteFormat
}

func validQuote(text, author string) (Quote, error) {
	text, author = strings.TrimSpace(text), strings.TrimSpace(author)
	if text == "" || author == "" {
		return Quote{}, errQuoteFormat
	}
	return Quote{Text: text, Author: author}, nil
}

func (q *QuoteClient) cached(ctx context.Context) (cachedQuote, bool) {
	if q.store == nil {
		return cachedQuote{}, false
	}
	var c cachedQuote
	if err := q.store.GetSetting(ctx, QuoteCacheKey, &c); err != nil {
		return cachedQuote{}, false
	}
	return c, true
}

func (q *QuoteClient) remember(ctx context.Context, c cachedQuote) {
	if q.store == nil {
		return
	}
	if err := q.store.PutSetting(ctx, QuoteCacheKey, c); err != nil {
		q.logger.Debug("failed to cache quote", "error", err)
	}
}
