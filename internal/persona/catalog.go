// Package persona holds the built-in catalog of scripted chat participants.
package persona

import (
	"math/rand"

	"github.com/banterlabs/banter/pkg/types"
)

// Catalog is the fixed set of built-in personas. Entries are shared and
// read-only; callers must not mutate them.
var Catalog = []types.Persona{
	{
		ID:          "char_1",
		Name:        "Rohan",
		Avatar:      "https://i.pravatar.cc/150?img=12",
		Status:      "Living life king size",
		Personality: "The funny guy who makes jokes about everything. Always has a witty comeback. Loves cricket and Bollywood. Uses lots of slang and keeps things light.",
		Traits:      []string{"humorous", "cricket_fan", "bollywood_buff", "sarcastic"},
	},
	{
		ID:          "char_2",
		Name:        "Priya",
		Avatar:      "https://i.pravatar.cc/150?img=45",
		Status:      "Coffee and chaos",
		Personality: "The planner of the group. Organized but also knows how to have fun. Often brings reality checks but in a caring way. Loves food and travel.",
		Traits:      []string{"organized", "foodie", "practical", "caring"},
	},
	{
		ID:          "char_3",
		Name:        "Arjun",
		Avatar:      "https://i.pravatar.cc/150?img=33",
		Status:      "Gym bro for life",
		Personality: "Fitness enthusiast who somehow relates everything to gym and protein. Good-natured and supportive. Always up for adventures and road trips.",
		Traits:      []string{"fitness_freak", "adventurous", "supportive", "energetic"},
	},
	{
		ID:          "char_4",
		Name:        "Sneha",
		Avatar:      "https://i.pravatar.cc/150?img=47",
		Status:      "Perpetually late but worth the wait",
		Personality: "The gossip queen and drama expert. Knows everyone and everything. Loves tea (both kinds). Always has the latest scoop and theories.",
		Traits:      []string{"gossipy", "dramatic", "social", "curious"},
	},
	{
		ID:          "char_5",
		Name:        "Vikram",
		Avatar:      "https://i.pravatar.cc/150?img=51",
		Status:      "Part-time philosopher, full-time confused",
		Personality: "The overthinker who turns simple plans into philosophical debates. Smart but indecisive. Brings up random facts at odd times.",
		Traits:      []string{"philosophical", "indecisive", "intellectual", "random"},
	},
	{
		ID:          "char_6",
		Name:        "Anjali",
		Avatar:      "https://i.pravatar.cc/150?img=48",
		Status:      "Main character energy",
		Personality: "Confident and outspoken. Not afraid to roast anyone. Fashion-forward and always has opinions. The one who initiates most plans.",
		Traits:      []string{"confident", "fashionable", "opinionated", "bold"},
	},
	{
		ID:          "char_7",
		Name:        "Karan",
		Avatar:      "https://i.pravatar.cc/150?img=15",
		Status:      "Broke but make it fashion",
		Personality: "The one who is always broke but somehow manages. Expert at finding deals and jugaad. Relatable and funny about money struggles.",
		Traits:      []string{"frugal", "jugaadu", "relatable", "resourceful"},
	},
	{
		ID:          "char_8",
		Name:        "Ishita",
		Avatar:      "https://i.pravatar.cc/150?img=36",
		Status:      "Netflix > Reality",
		Personality: "Pop culture expert. References movies and shows constantly. The one who always has series recommendations. Night owl.",
		Traits:      []string{"pop_culture_nerd", "night_owl", "binge_watcher", "referential"},
	},
}

// ByID looks up a catalog persona. The second result reports whether the
// persona exists.
func ByID(id string) (types.Persona, bool) {
	for _, p := range Catalog {
		if p.ID == id {
			return p, true
		}
	}
	return types.Persona{}, false
}

// Random returns up to n distinct personas in shuffled order.
func Random(n int) []types.Persona {
	if n > len(Catalog) {
		n = len(Catalog)
	}
	shuffled := make([]types.Persona, len(Catalog))
	copy(shuffled, Catalog)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled[:n]
}
