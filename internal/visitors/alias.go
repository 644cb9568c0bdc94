package visitors

import "hash/fnv"

var aliasAdjectives = []string{
	"Curious", "Happy", "Clever", "Wise", "Playful", "Brave", "Swift", "Gentle", "Smart", "Busy",
	"Bold", "Bright", "Calm", "Cheerful", "Daring", "Eager", "Fearless", "Friendly", "Jolly", "Keen",
	"Lively", "Lucky", "Merry", "Nimble", "Patient", "Proud", "Quick", "Quiet", "Silent", "Sunny",
}

var aliasAnimals = []string{
	"Panda", "Fox", "Owl", "Otter", "Lion", "Eagle", "Deer", "Raven", "Beaver", "Koala",
	"Sloth", "Hamster", "Cat", "Bear", "Penguin", "Kangaroo", "Parrot", "Giraffe", "Duck", "Raccoon",
	"Dolphin", "Whale", "Seahorse", "Turtle", "Octopus", "Falcon", "Hawk", "Swan", "Crane", "Heron",
	"Tiger", "Wolf", "Rabbit", "Hedgehog", "Squirrel", "Lynx", "Badger", "Moose", "Ibis", "Finch",
}

// Alias returns a stable anonymized display name for a visitor fingerprint,
// used wherever the dashboard needs to show an identity without exposing the
// underlying hash.
func Alias(fingerprint string) string {
	h := fnv.New32a()
	h.Write([]byte(fingerprint))
	// Stay in uint32: int(Sum32()) would go negative on 32-bit platforms.
	sum := h.Sum32()

	adjIndex := sum % uint32(len(aliasAdjectives))
	animalIndex := (sum / uint32(len(aliasAdjectives))) % uint32(len(aliasAnimals))

	return aliasAdjectives[adjIndex] + " " + aliasAnimals[animalIndex]
}
