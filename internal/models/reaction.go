package models

// Reaction is one of the emoji a reader can leave on a post.
type Reaction string

const (
	ReactionHeart    Reaction = "❤️"
	ReactionThumbsUp Reaction = "👍"
	ReactionSweat    Reaction = "😅"
	ReactionMindBlow Reaction = "🤯"
	ReactionParty    Reaction = "🎉"
)

// Reactions lists the selectable reactions in display order.
var Reactions = []Reaction{ReactionHeart, ReactionThumbsUp, ReactionSweat, ReactionMindBlow, ReactionParty}

func (r Reaction) Valid() bool {
	for _, known := range Reactions {
		if r == known {
			return true
		}
	}
	return false
}

// ReactionSummary holds per-emoji counts for a post and the reaction the
// current reader has selected, if any.
type ReactionSummary struct {
	Counts   map[Reaction]int `json:"counts"`
	Selected Reaction         `json:"selected,omitempty"`
}

// Total is the number of reactions across all emoji.
func (s ReactionSummary) Total() int {
	total := 0
	for _, n := range s.Counts {
		total += n
	}
	return total
}
