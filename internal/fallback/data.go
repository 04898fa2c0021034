package fallback

import "github.com/tjfontaine/polyglot-persona/internal/domain"

var keywordsByLetter = map[rune][domain.KeywordCount]string{
	'a': {"Adventure", "Anchor", "Aurora", "Amber"},
	'b': {"Bridge", "Blossom", "Beacon", "Breeze"},
	'c': {"Compass", "Crystal", "Canyon", "Candle"},
	'd': {"Dawn", "Drift", "Dream", "Dune"},
	'e': {"Echo", "Ember", "Eclipse", "Emerald"},
	'f': {"Forest", "Feather", "Flame", "Frontier"},
	'g': {"Garden", "Glacier", "Glow", "Gate"},
	'h': {"Harbor", "Horizon", "Hearth", "Harmony"},
	'i': {"Island", "Ivory", "Insight", "Iris"},
	'j': {"Journey", "Jade", "Jubilee", "Jewel"},
	'k': {"Kite", "Kindle", "Key", "Kingdom"},
	'l': {"Lantern", "Labyrinth", "Lagoon", "Legend"},
	'm': {"Meadow", "Mirror", "Moonlight", "Melody"},
	'n': {"Nebula", "North", "Nest", "Nocturne"},
	'o': {"Ocean", "Orbit", "Oasis", "Oracle"},
	'p': {"Path", "Prism", "Petal", "Pilot"},
	'q': {"Quest", "Quartz", "Quill", "Quiet"},
	'r': {"River", "Ripple", "Rainbow", "Relic"},
	's': {"Star", "Summit", "Shadow", "Spring"},
	't': {"Tide", "Thunder", "Tower", "Trail"},
	'u': {"Umbra", "Unity", "Upland", "Utopia"},
	'v': {"Voyage", "Valley", "Velvet", "Vista"},
	'w': {"Wind", "Willow", "Wonder", "Wave"},
	'x': {"Xenon", "Xylophone", "X-Ray", "Xenial"},
	'y': {"Yarn", "Yonder", "Yearning", "Yew"},
	'z': {"Zenith", "Zephyr", "Zest", "Zone"},
}

// keywordPool serves characters outside a-z.
var keywordPool = []string{
	"Light", "Journey", "Mystery", "Hope",
	"Courage", "Wisdom", "Freedom", "Promise",
	"Memory", "Spark", "Balance", "Change",
}

var defaultAxes = []domain.Axis{
	{
		ID:          "axis_1",
		Name:        "Boldness",
		Description: "How readily you act in the face of uncertainty.",
		Direction:   "Bold / Careful",
	},
	{
		ID:          "axis_2",
		Name:        "Sociability",
		Description: "Whether you draw energy from others or from solitude.",
		Direction:   "Outgoing / Reserved",
	},
	{
		ID:          "axis_3",
		Name:        "Reasoning",
		Description: "Whether decisions lean on logic or on feeling.",
		Direction:   "Logical / Intuitive",
	},
	{
		ID:          "axis_4",
		Name:        "Structure",
		Description: "Preference for plans versus improvisation.",
		Direction:   "Planned / Spontaneous",
	},
}

type beat struct {
	narrative string
	choices   [domain.ChoicesPerScene]string
}

type theme struct {
	beats [domain.SceneCount]beat
}

// Narratives take the confirmed keyword as their single %s verb.
var themes = map[string]theme{
	"adventure": {beats: [domain.SceneCount]beat{
		{
			narrative: "You wake at the edge of an unfamiliar trail. Carved into a stone marker is a single word: %s. The path splits ahead.",
			choices:   [4]string{"Take the steep path up the ridge", "Wait and study the map", "Call out to see if anyone is near", "Follow the sound of running water"},
		},
		{
			narrative: "A rope bridge sways over a deep gorge. Someone has tied a ribbon marked %s to its first plank.",
			choices:   [4]string{"Cross quickly before doubt sets in", "Test each plank carefully", "Look for another way around", "Wait for another traveler to cross first"},
		},
		{
			narrative: "At a mountain camp, a group of travelers argue over the meaning of %s. They turn to you.",
			choices:   [4]string{"Offer your view with confidence", "Ask each of them what they think", "Suggest settling it by experiment", "Quietly keep your thoughts to yourself"},
		},
		{
			narrative: "The summit lies ahead, and with it whatever %s has been leading you toward. Night is falling.",
			choices:   [4]string{"Climb on in the dark", "Make camp and go at dawn", "Gather the others to go together", "Sit and watch the stars instead"},
		},
	}},
	"mystery": {beats: [domain.SceneCount]beat{
		{
			narrative: "A letter arrives with no return address. Inside, one word is underlined: %s.",
			choices:   [4]string{"Head straight to the post office", "Analyze the handwriting", "Show it to a trusted friend", "Set it aside and wait for more"},
		},
		{
			narrative: "The trail leads to an old library where a book titled %s is missing from its shelf.",
			choices:   [4]string{"Question the librarian directly", "Search the catalog records", "Ask the regular visitors", "Follow a hunch to the basement"},
		},
		{
			narrative: "You find a locked box engraved with %s. A stranger claims it belongs to them.",
			choices:   [4]string{"Open it on the spot", "Ask for proof of ownership", "Propose opening it together", "Hand it over and watch what happens"},
		},
		{
			narrative: "Every clue points to the clock tower, where %s was first spoken decades ago.",
			choices:   [4]string{"Confront whoever waits at the top", "Lay out the evidence first", "Bring everyone involved", "Trust your instinct about the answer"},
		},
	}},
	"school": {beats: [domain.SceneCount]beat{
		{
			narrative: "On the first day of term, the class project theme is announced: %s.",
			choices:   [4]string{"Volunteer to lead the team", "Draft a detailed plan", "Chat with classmates for ideas", "Sketch whatever comes to mind"},
		},
		{
			narrative: "Halfway through, your team disagrees on how to present %s.",
			choices:   [4]string{"Make the final call yourself", "Compare options with a pros and cons list", "Hold a vote", "Try a bit of every idea"},
		},
		{
			narrative: "The night before the deadline, the slides about %s are lost.",
			choices:   [4]string{"Rebuild them from memory right away", "Check every backup methodically", "Rally the team for a late session", "Improvise a live demo instead"},
		},
		{
			narrative: "Presentation day. The audience waits to hear what %s means to you.",
			choices:   [4]string{"Speak boldly without notes", "Follow the script precisely", "Invite the audience to join in", "Tell a personal story"},
		},
	}},
	"fantasy": {beats: [domain.SceneCount]beat{
		{
			narrative: "A dragon's egg glows faintly at the mouth of a cave. The runes around it spell %s.",
			choices:   [4]string{"Pick it up", "Decipher the runes first", "Summon the village elder", "Listen to what the egg seems to say"},
		},
		{
			narrative: "A forest spirit offers you a gift in exchange for the secret of %s.",
			choices:   [4]string{"Accept the bargain at once", "Negotiate the terms", "Ask your companions for counsel", "Follow your heart and refuse"},
		},
		{
			narrative: "The enchanted city gates only open for those who understand %s.",
			choices:   [4]string{"Force the gates", "Study the lock mechanism", "Befriend the gatekeeper", "Sing the word aloud"},
		},
		{
			narrative: "In the throne room, the crown of %s rests on an empty seat.",
			choices:   [4]string{"Claim the crown", "Examine the seat for traps", "Offer it to the people", "Leave it where it lies"},
		},
	}},
}
