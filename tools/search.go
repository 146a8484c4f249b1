package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/finchkit/finch/core"
)

// SearchInput selects a topic and detail level.
type SearchInput struct {
	Query       string `json:"query" description:"The topic or question to search for"`
	DetailLevel string `json:"detail_level,omitempty" enum:"simple,detailed" description:"Level of detail in the response"`
}

// SearchOutput is the curated answer.
type SearchOutput struct {
	Topic         string   `json:"topic"`
	Content       string   `json:"content"`
	RelatedTopics []string `json:"related_topics,omitempty"`
	Source        string   `json:"source"`
}

type corpusEntry struct {
	simple   string
	detailed string
	topics   []string
}

// Curated knowledge base. A production deployment would back this with a
// search API or vector store.
var educationalCorpus = map[string]corpusEntry{
	"dinosaurs": {
		simple:   "Dinosaurs were amazing animals that lived millions of years ago! Some were as big as buildings, and some were as small as chickens.",
		detailed: "Dinosaurs were a diverse group of reptiles that dominated Earth for over 160 million years during the Mesozoic Era. They ranged from the massive Argentinosaurus (over 30 meters long) to the tiny Microraptor (less than 1 meter).",
		topics:   []string{"t-rex", "triceratops", "fossils", "extinction", "paleontology"},
	},
	"space": {
		simple:   "Space is everything beyond Earth! It has stars, planets, and moons. Our planet Earth is like a tiny blue marble floating in space.",
		detailed: "Space is the vast expanse beyond Earth's atmosphere. It contains galaxies, stars, planets, moons, asteroids, and more. Our solar system is just one of billions in the Milky Way galaxy.",
		topics:   []string{"planets", "stars", "moon", "astronauts", "rockets", "solar system"},
	},
	"animals": {
		simple:   "Animals are living things that can move around! They come in all shapes and sizes - from tiny ants to huge whales.",
		detailed: "Animals are multicellular organisms that form the biological kingdom Animalia. They are characterized by their ability to move, respond to their environment, and consume other organisms for energy.",
		topics:   []string{"mammals", "reptiles", "birds", "fish", "insects", "habitats"},
	},
	"weather": {
		simple:   "Weather is what's happening outside! Sometimes it's sunny, sometimes it rains, and sometimes it snows. The sun, air, and water work together to make weather.",
		detailed: "Weather describes the state of the atmosphere at a specific place and time, including temperature, humidity, precipitation, wind, and cloud cover. It's driven by solar energy heating Earth unevenly.",
		topics:   []string{"rain", "snow", "clouds", "thunder", "seasons", "climate"},
	},
	"plants": {
		simple:   "Plants are living things that make their own food using sunlight! They give us oxygen to breathe and food to eat.",
		detailed: "Plants are photosynthetic organisms that convert sunlight, water, and carbon dioxide into glucose and oxygen. They form the foundation of most ecosystems and are essential for life on Earth.",
		topics:   []string{"flowers", "trees", "photosynthesis", "seeds", "gardens", "forests"},
	},
	"autumn leaves": {
		simple:   "Trees drop their leaves in autumn to rest for winter, kind of like bedtime for plants! When spring comes, they wake up and grow new leaves.",
		detailed: "In autumn, deciduous trees stop producing chlorophyll as days get shorter. This reveals yellow and orange pigments that were hidden, and some trees also produce red pigments. Trees drop their leaves to conserve water and energy during winter.",
		topics:   []string{"autumn", "leaves", "seasons", "chlorophyll"},
	},
}

// NewSearchTool builds the educational search tool. When no detail level is
// requested, the child's band decides: young bands get the simple answer.
func NewSearchTool() core.ToolHandle {
	tool := New("search_educational",
		"Search for educational information on a topic. Returns child-friendly explanations about science, nature, animals, space, and other educational topics.",
		func(ctx context.Context, in SearchInput, meta core.ToolMeta) (SearchOutput, error) {
			if strings.TrimSpace(in.Query) == "" {
				return SearchOutput{}, core.NewError(core.ErrBadRequest, "search requires a query")
			}
			level := in.DetailLevel
			if level == "" {
				level = "detailed"
				if meta.Profile.Young() {
					level = "simple"
				}
			}
			query := strings.ToLower(in.Query)
			for topic, entry := range educationalCorpus {
				if !matchesTopic(query, topic, entry.topics) {
					continue
				}
				content := entry.simple
				if level == "detailed" {
					content = entry.detailed
				}
				return SearchOutput{
					Topic:         topic,
					Content:       content,
					RelatedTopics: entry.topics,
					Source:        "educational_corpus",
				}, nil
			}
			return SearchOutput{
				Topic:   in.Query,
				Content: fmt.Sprintf("I don't have specific information about %q in my knowledge base, but I'd love to help you learn about it! Could you tell me more about what you'd like to know?", in.Query),
				Source:  "fallback",
			}, nil
		})
	return tool
}

func matchesTopic(query, topic string, related []string) bool {
	if strings.Contains(query, topic) {
		return true
	}
	for _, t := range related {
		if strings.Contains(query, t) {
			return true
		}
	}
	return false
}
