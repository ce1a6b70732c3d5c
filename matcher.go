/*
Copyright 2025 Centra Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package centra

import (
	"math"
	"strings"
	"time"

	"github.com/texttheater/golang-levenshtein/levenshtein"

	"github.com/centraledger/centra/config"
	"github.com/centraledger/centra/model"
)

// Confidence weights per signal. They sum to 1.0; the score is clamped to
// [0, 1] regardless.
const (
	amountWeight      = 0.5
	timeWeight        = 0.3
	locationWeight    = 0.1
	descriptionWeight = 0.1
)

const minTokenLength = 4

// Matcher scores external transactions against expense entries. It holds no
// connections and performs no I/O, so one instance is safe to share across
// goroutines.
type Matcher struct {
	TimeWindow      time.Duration
	AmountTolerance float64
}

// NewMatcher returns a matcher with the default ten minute window and 1%
// amount tolerance.
func NewMatcher() Matcher {
	return Matcher{
		TimeWindow:      10 * time.Minute,
		AmountTolerance: 0.01,
	}
}

// NewMatcherFromConfig builds a matcher from the deployment configuration,
// falling back to defaults for unset values.
func NewMatcherFromConfig(cfg *config.ReconciliationConfig) Matcher {
	m := NewMatcher()
	if cfg.TimeWindowMs > 0 {
		m.TimeWindow = time.Duration(cfg.TimeWindowMs) * time.Millisecond
	}
	if cfg.AmountTolerance > 0 {
		m.AmountTolerance = cfg.AmountTolerance
	}
	return m
}

// Score computes the confidence that a gateway transaction and an expense
// entry describe the same spend. Amount comparison happens in major units
// with a relative tolerance; time compares the gateway's paid timestamp
// against the user's entry date. Location data is not collected yet, so that
// signal never fires and full confidence tops out at 0.9.
func (m Matcher) Score(txn *model.ExternalTransaction, entry *model.ExpenseEntry) (float64, model.MatchFactors) {
	var factors model.MatchFactors
	score := 0.0

	txnAmount := model.MajorUnitsOrDefault(txn.AmountMinor, txn.Currency)
	entryAmount := model.MajorUnitsOrDefault(entry.AmountMinor, entry.Currency)
	if math.Abs(txnAmount-entryAmount) <= txnAmount*m.AmountTolerance {
		factors.AmountMatch = true
		score += amountWeight
	}

	timeDiff := txn.PaidAt.Sub(entry.EntryDate)
	if timeDiff < 0 {
		timeDiff = -timeDiff
	}
	if timeDiff <= m.TimeWindow {
		factors.TimeMatch = true
		score += timeWeight
	}

	if factors.LocationMatch {
		score += locationWeight
	}

	if sharedToken(txn.Description, entry.Title+" "+entry.Note) {
		factors.DescriptionMatch = true
		score += descriptionWeight
	}

	return clamp(score), factors
}

// DescriptionSimilarity is a levenshtein ratio over the normalized texts.
// It only orders candidates with equal confidence; it never contributes to
// the confidence score.
func (m Matcher) DescriptionSimilarity(txn *model.ExternalTransaction, entry *model.ExpenseEntry) float64 {
	a := strings.Join(model.Tokenize(txn.Description), " ")
	b := strings.Join(model.Tokenize(entry.Title+" "+entry.Note), " ")
	if a == "" || b == "" {
		return 0
	}
	return levenshtein.RatioForStrings([]rune(a), []rune(b), levenshtein.DefaultOptions)
}

// sharedToken reports whether the two texts share a token of at least four
// characters. Short tokens carry too little signal to count.
func sharedToken(a, b string) bool {
	tokensA := model.Tokenize(a)
	if len(tokensA) == 0 {
		return false
	}
	seen := make(map[string]struct{}, len(tokensA))
	for _, token := range tokensA {
		if len(token) >= minTokenLength {
			seen[token] = struct{}{}
		}
	}
	for _, token := range model.Tokenize(b) {
		if len(token) < minTokenLength {
			continue
		}
		if _, ok := seen[token]; ok {
			return true
		}
	}
	return false
}

func clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
