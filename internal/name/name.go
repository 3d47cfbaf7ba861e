// Package name generates random generation names.
package name

import (
	"math/rand"
)

var adjectives = []string{
	"bold", "brave", "bright", "calm", "clever",
	"cool", "eager", "fair", "fast", "fierce",
	"gentle", "glossy", "golden", "happy", "jolly",
	"keen", "kind", "lively", "lucky", "merry",
	"mighty", "noble", "pale", "proud", "quick",
	"quiet", "rustic", "sharp", "silent", "sleek",
	"smart", "smooth", "snappy", "speedy", "steady",
	"swift", "tender", "tough", "vivid", "warm",
	"wild", "wise", "witty", "zesty", "agile",
	"alert", "amber", "cosmic", "daring", "grand",
}

var minerals = []string{
	"agate", "basalt", "beryl", "calcite", "citrine",
	"coral", "diamond", "emerald", "feldspar", "flint",
	"garnet", "granite", "gypsum", "jade", "jasper",
	"lapis", "lignite", "marble", "mica", "obsidian",
	"onyx", "opal", "pearl", "peridot", "porphyry",
	"pumice", "pyrite", "quartz", "rhodonite", "ruby",
	"sapphire", "sardonyx", "schist", "selenite", "serpentine",
	"shale", "slate", "spinel", "sunstone", "talc",
	"topaz", "tourmaline", "travertine", "turquoise", "zircon",
}

// Generate returns a random name in adjective-mineral format.
func Generate() string {
	adj := adjectives[rand.Intn(len(adjectives))]
	mineral := minerals[rand.Intn(len(minerals))]
	return adj + "-" + mineral
}
