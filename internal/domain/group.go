package domain

// Well-known group identifiers.
const (
	GroupRecent   = "recent"
	GroupClawMeta = "claw-meta"
	GroupDogMeta  = "dog-meta"
	GroupFrogMeta = "frog-meta"
	GroupAIMeta   = "ai-meta"
	GroupPolitiFi = "politifi"
	GroupCats     = "cats"
	GroupGaming   = "gaming"
	GroupFood     = "food"
)

// TrendGroup is a named bucket of classified tokens, most recent first.
type TrendGroup struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	TrendScore  int     `json:"trendScore"`
	Tokens      []Token `json:"tokens"`
}

// DefaultGroups returns the statically enumerated groups, empty, with their base scores.
func DefaultGroups() []TrendGroup {
	return []TrendGroup{
		{ID: GroupClawMeta, Name: "Claw & Sea Creatures", Description: "Tokens related to crabs, lobsters, and sea themes.", TrendScore: 95},
		{ID: GroupDogMeta, Name: "Dog Kingdom", Description: "Man's best friend and crypto's favorite meme.", TrendScore: 92},
		{ID: GroupFrogMeta, Name: "Frog Pond", Description: "Pepe, Apu, and all things green and amphibian.", TrendScore: 90},
		{ID: GroupAIMeta, Name: "AI Revolution", Description: "Artificial Intelligence and autonomous agents.", TrendScore: 88},
		{ID: GroupPolitiFi, Name: "PolitiFi", Description: "Political memes and satire.", TrendScore: 75},
		{ID: GroupCats, Name: "Cat Season", Description: "Cats are taking over the blockchain.", TrendScore: 82},
		{ID: GroupGaming, Name: "GameFi & Retro", Description: "Pixels, games, and play-to-earn vibes.", TrendScore: 70},
		{ID: GroupFood, Name: "Food & Drink", Description: "Delicious tokens for the hungry degens.", TrendScore: 65},
		{ID: GroupRecent, Name: "Fresh Mints", Description: "The absolute latest tokens hitting the chain.", TrendScore: 100},
	}
}
