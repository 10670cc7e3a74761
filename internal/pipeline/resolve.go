package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"attendance-reconciler/internal/model"
)

// ParseJoinMode accepts auto, id, email or none (case-insensitive). Empty means auto.
func ParseJoinMode(s string) (model.JoinMode, error) {
	switch mode := model.JoinMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case "":
		return model.JoinAuto, nil
	case model.JoinAuto, model.JoinID, model.JoinEmail, model.JoinNone:
		return mode, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownJoinMode, s)
	}
}

// gradebookIndex is the gradebook sorted by student key with lookup tables.
// Candidate lists hold ascending positions, so they come out in key order
// no matter how the gradebook rows were ordered.
type gradebookIndex struct {
	identities []model.GradebookIdentity
	byID       map[string][]int
	byEmail    map[string][]int
	byName     map[string][]int
}

func newGradebookIndex(identities []model.GradebookIdentity) *gradebookIndex {
	sorted := make([]model.GradebookIdentity, len(identities))
	copy(sorted, identities)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key() < sorted[j].Key() })

	idx := &gradebookIndex{
		identities: sorted,
		byID:       make(map[string][]int),
		byEmail:    make(map[string][]int),
		byName:     make(map[string][]int),
	}
	for i, g := range sorted {
		if g.StudentID != "" {
			idx.byID[g.StudentID] = append(idx.byID[g.StudentID], i)
		}
		if g.Email != "" {
			idx.byEmail[g.Email] = append(idx.byEmail[g.Email], i)
		}
		if g.DisplayName != "" {
			key := nameKey(g.DisplayName)
			idx.byName[key] = append(idx.byName[key], i)
		}
	}
	return idx
}

func (idx *gradebookIndex) keys(positions []int) []string {
	keys := make([]string, len(positions))
	for i, p := range positions {
		keys[i] = idx.identities[p].Key()
	}
	return keys
}

// matcher is one strategy in the fixed priority list. A non-empty candidate
// set stops the search; ties become Ambiguous unless uniqueOnly is set, in
// which case they become Unmatched.
type matcher struct {
	stage      string
	candidates func(idx *gradebookIndex, hint model.IdentityHint) []int
	uniqueOnly bool
}

var (
	idMatcher = matcher{
		stage: "id",
		candidates: func(idx *gradebookIndex, hint model.IdentityHint) []int {
			if hint.ID == "" {
				return nil
			}
			return idx.byID[hint.ID]
		},
	}
	emailMatcher = matcher{
		stage: "email",
		candidates: func(idx *gradebookIndex, hint model.IdentityHint) []int {
			if hint.Email == "" {
				return nil
			}
			return idx.byEmail[hint.Email]
		},
	}
	nameMatcher = matcher{
		stage: "name",
		candidates: func(idx *gradebookIndex, hint model.IdentityHint) []int {
			if hint.Name == "" {
				return nil
			}
			return idx.byName[nameKey(hint.Name)]
		},
		uniqueOnly: true,
	}
)

func matchersFor(mode model.JoinMode) []matcher {
	switch mode {
	case model.JoinID:
		return []matcher{idMatcher}
	case model.JoinEmail:
		return []matcher{emailMatcher}
	case model.JoinAuto:
		return []matcher{idMatcher, emailMatcher, nameMatcher}
	default:
		return nil
	}
}

// Resolve maps every event to exactly one outcome; outcomes[i] belongs to events[i].
// In JoinNone every event is Unmatched and the gradebook is not consulted.
func Resolve(events []model.AttendanceEvent, identities []model.GradebookIdentity, mode model.JoinMode) []model.ResolutionOutcome {
	outcomes := make([]model.ResolutionOutcome, len(events))
	matchers := matchersFor(mode)
	if len(matchers) == 0 {
		for i := range outcomes {
			outcomes[i] = model.ResolutionOutcome{Kind: model.Unmatched}
		}
		return outcomes
	}

	idx := newGradebookIndex(identities)
	for i, ev := range events {
		outcomes[i] = resolveOne(idx, matchers, ev.Hint)
	}
	return outcomes
}

func resolveOne(idx *gradebookIndex, matchers []matcher, hint model.IdentityHint) model.ResolutionOutcome {
	for _, m := range matchers {
		positions := m.candidates(idx, hint)
		switch {
		case len(positions) == 0:
			continue
		case len(positions) == 1:
			return model.ResolutionOutcome{
				Kind:      model.Matched,
				StudentID: idx.identities[positions[0]].Key(),
				Stage:     m.stage,
			}
		case m.uniqueOnly:
			return model.ResolutionOutcome{Kind: model.Unmatched, Stage: m.stage}
		default:
			return model.ResolutionOutcome{
				Kind:       model.Ambiguous,
				Candidates: idx.keys(positions),
				Stage:      m.stage,
			}
		}
	}
	return model.ResolutionOutcome{Kind: model.Unmatched}
}
