// ABOUTME: Mood statistics over journal entries
// ABOUTME: Average, label distribution, chart series and weather/mood patterns

package journal

import (
	"fmt"
	"math"
	"slices"

	"github.com/2389/mindmatters/internal/external"
	"github.com/2389/mindmatters/internal/store"
)

// MoodShare is one label's share of all entries.
type MoodShare struct {
	Mood       string  `json:"mood"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Point is one chart sample.
type Point struct {
	Date  string `json:"date"`
	Value int    `json:"value"`
}

// Stats summarises a set of entries.
type Stats struct {
	Count   int         `json:"count"`
	Average float64     `json:"average"`
	Trends  []MoodShare `json:"trends"`
	Series  []Point     `json:"series"`
}

// Summarize computes statistics. Averages and percentages are rounded to two
// decimals; the series is in chronological order.
func Summarize(entries []*store.MoodEntry) Stats {
	s := Stats{Count: len(entries), Trends: []MoodShare{}, Series: []Point{}}
	if len(entries) == 0 {
		return s
	}

	sum := 0
	counts := map[string]int{}
	for _, e := range entries {
		sum += e.MoodValue
		counts[e.Mood]++
	}
	s.Average = round2(float64(sum) / float64(len(entries)))

	for mood, n := range counts {
		s.Trends = append(s.Trends, MoodShare{
			Mood:       mood,
			Count:      n,
			Percentage: round2(float64(n) / float64(len(entries)) * 100),
		})
	}
	slices.SortFunc(s.Trends, func(a, b MoodShare) int {
		if a.Count != b.Count {
			return b.Count - a.Count
		}
		if a.Mood < b.Mood {
			return -1
		}
		if a.Mood > b.Mood {
			return 1
		}
		return 0
	})

	chrono := slices.Clone(entries)
	SortNewestFirst(chrono)
	slices.Reverse(chrono)
	for _, e := range chrono {
		s.Series = append(s.Series, Point{Date: e.Day(), Value: e.MoodValue})
	}
	return s
}

// WeatherGroupStats is the mood average under one kind of weather.
type WeatherGroupStats struct {
	Group   string  `json:"group"`
	Count   int     `json:"count"`
	Average float64 `json:"average"`
}

// Insight is a sentence about weather and mood.
type Insight struct {
	Kind string `json:"kind"` // positive, negative, significant
	Text string `json:"text"`
}

// WeatherPatterns relates mood to weather.
type WeatherPatterns struct {
	EnoughData bool                `json:"enoughData"`
	Message    string              `json:"message,omitempty"`
	Groups     []WeatherGroupStats `json:"groups,omitempty"`
	Best       string              `json:"best,omitempty"`
	Worst      string              `json:"worst,omitempty"`
	Insights   []Insight           `json:"insights,omitempty"`
}

// minPatternEntries is the fewest entries worth analysing.
const minPatternEntries = 3

// minGroupEntries is the fewest entries a group needs to rank as best/worst.
const minGroupEntries = 2

var weatherGroups = []string{"sunny", "cloudy", "rainy", "snowy"}

// AnalyzeWeather groups entries with a weather snapshot by sky condition
// and reports which conditions go with better or worse moods.
func AnalyzeWeather(entries []*store.MoodEntry) WeatherPatterns {
	if len(entries) < minPatternEntries {
		return WeatherPatterns{
			Message: "We need more mood entries to analyze weather patterns. Keep logging your moods!",
		}
	}

	sums := map[string]int{}
	counts := map[string]int{}
	for _, e := range entries {
		if e.Weather == nil {
			continue
		}
		g := external.WeatherGroup(e.Weather.WeatherCode)
		if g == "" {
			continue
		}
		sums[g] += e.MoodValue
		counts[g]++
	}

	p := WeatherPatterns{EnoughData: true}
	highest, lowest := 0.0, 11.0
	for _, g := range weatherGroups {
		n := counts[g]
		if n == 0 {
			continue
		}
		avg := round1(float64(sums[g]) / float64(n))
		p.Groups = append(p.Groups, WeatherGroupStats{Group: g, Count: n, Average: avg})
		if n < minGroupEntries {
			continue
		}
		if avg > highest {
			highest, p.Best = avg, g
		}
		if avg < lowest {
			lowest, p.Worst = avg, g
		}
	}

	if p.Best != "" {
		p.Insights = append(p.Insights, Insight{
			Kind: "positive",
			Text: fmt.Sprintf("You tend to feel better on %s days (average mood: %.1f/10).", p.Best, highest),
		})
	}
	if p.Worst != "" && p.Worst != p.Best {
		p.Insights = append(p.Insights, Insight{
			Kind: "negative",
			Text: fmt.Sprintf("You tend to feel lower on %s days (average mood: %.1f/10).", p.Worst, lowest),
		})
		if diff := highest - lowest; diff >= 2 {
			p.Insights = append(p.Insights, Insight{
				Kind: "significant",
				Text: fmt.Sprintf("Weather seems to have a significant impact on your mood (%.1f points difference).", diff),
			})
		}
	}
	return p
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round1(v float64) float64 { return math.Round(v*10) / 10 }
