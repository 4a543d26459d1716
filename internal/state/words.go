package state

import (
	"fmt"
	"hash/fnv"
	"time"
)

// Word lists for plan file naming. Plan files get adjective-verb-noun names
// like velvety-crunching-ocean, matching the real CLI's convention.

var planAdjectives = []string{
	"velvety", "swirling", "gleaming", "dancing", "quiet", "bright", "ancient",
	"swift", "gentle", "bold", "frozen", "golden", "hollow", "eager", "secret",
	"distant", "misty", "tender", "wild", "calm",
}

var planVerbs = []string{
	"crunching", "gliding", "spinning", "weaving", "drifting", "singing",
	"flowing", "growing", "building", "seeking", "watching", "waiting",
	"running", "falling", "rising", "turning", "crossing", "finding",
	"making", "taking",
}

var planNouns = []string{
	"ocean", "forest", "mountain", "river", "meadow", "valley", "island",
	"canyon", "desert", "glacier", "thunder", "shadow", "crystal", "ember",
	"garden", "harbor", "beacon", "bridge", "tunnel", "tower",
}

// GeneratePlanName produces a plan name from the word lists. Selection is
// seeded from the clock rather than a random source so the binary stays
// free of extra entropy dependencies.
func GeneratePlanName() string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d", time.Now().UnixNano())
	hash := h.Sum64()

	adj := planAdjectives[hash%uint64(len(planAdjectives))]
	verb := planVerbs[(hash>>16)%uint64(len(planVerbs))]
	noun := planNouns[(hash>>32)%uint64(len(planNouns))]
	return fmt.Sprintf("%s-%s-%s", adj, verb, noun)
}
