// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NormalizeName derives the unique form of a display name.
//
// The name is trimmed, NFKC-normalized and case-folded, so "Alice", "ALICE"
// and the full-width "Ａｌｉｃｅ" all collide.
func NormalizeName(name string) string {
	normalized := norm.NFKC.String(strings.TrimSpace(name))

	// A Caser keeps internal state; build one per call.
	return cases.Fold().String(normalized)
}

var (
	placeholderAdjectives = []string{
		"Amber", "Brave", "Calm", "Dusty", "Eager", "Fuzzy", "Gentle", "Happy",
		"Icy", "Jolly", "Keen", "Lucky", "Mellow", "Nimble", "Olive", "Proud",
		"Quiet", "Rusty", "Sunny", "Tiny", "Velvet", "Witty", "Zesty",
	}
	placeholderAnimals = []string{
		"Badger", "Crane", "Dolphin", "Falcon", "Gecko", "Heron", "Ibis", "Koala",
		"Lemur", "Marmot", "Newt", "Otter", "Panda", "Quokka", "Raven", "Seal",
		"Tapir", "Urchin", "Walrus", "Yak", "Zebra",
	}
)

// PlaceholderName returns a random display name for an anonymous identity,
// such as "Brave Otter 42". Placeholders are not required to be unique.
func PlaceholderName() string {
	adjective := placeholderAdjectives[rand.IntN(len(placeholderAdjectives))]
	animal := placeholderAnimals[rand.IntN(len(placeholderAnimals))]
	return fmt.Sprintf("%s %s %d", adjective, animal, rand.IntN(100))
}
