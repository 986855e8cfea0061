package listview

type placeholder struct {
	modulus int
	name    string
	content string
}

// checked in order, the first modulus dividing the index wins
var placeholders = []placeholder{
	{17, "There is no spoon", "Ever have that feeling where you’re not sure if you’re awake or dreaming?"},
	{13, "Get Up Trinity", "Choice is an illusion created between those with power and those without."},
	{11, "I know kung fu", "That’s how it is with people. Nobody cares how it works as long as it works."},
	{7, "Free your mind", "The body cannot live without the mind."},
	{5, "Agent Smith", "Perhaps we are asking the wrong questions…"},
	{3, "Mr Anderson", "You've been living in a dream world, Neo."},
}

var defaultPlaceholder = placeholder{
	name:    "Morpheus",
	content: "Mr. Wizard, get me the hell out of here! ",
}

// PlaceholderText returns filler text for a slot whose room is not known yet. The text depends
// only on the index, so slots do not flicker when re-rendered. long selects the content line
// rather than the name.
func PlaceholderText(index int, long bool) string {
	p := defaultPlaceholder
	for _, candidate := range placeholders {
		if index%candidate.modulus == 0 {
			p = candidate
			break
		}
	}
	if long {
		return p.content
	}
	return p.name
}
