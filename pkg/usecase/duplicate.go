package usecase

import (
	"slices"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"github.com/m-mizutani/octomend/pkg/domain/model"
)

// DuplicatePolicy reports whether two repositories are duplicates of each
// other. It must be symmetric.
type DuplicatePolicy func(a, b *model.Repository) bool

var duplicateNameSuffixes = []string{"copy", "backup", "bak", "old", "fork", "mirror", "clone"}

// DefaultDuplicatePolicy treats repositories as duplicates when they share
// history, or when their names differ only by a copy-like suffix or a single
// edit. Repositories whose histories are both known and differ are never
// duplicates, and neither are numbered siblings such as "worker1" and
// "worker2".
func DefaultDuplicatePolicy(a, b *model.Repository) bool {
	if a.HistoryFingerprint != "" && b.HistoryFingerprint != "" {
		return a.HistoryFingerprint == b.HistoryFingerprint
	}

	na, nb := normalizeRepoName(a.Name), normalizeRepoName(b.Name)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	if stripDigits(na) == stripDigits(nb) {
		return false
	}
	// Short names are too close to each other to compare by distance.
	if len(na) < 6 || len(nb) < 6 {
		return false
	}
	return levenshtein.ComputeDistance(na, nb) <= 1
}

// normalizeRepoName lowercases name and joins its words, dropping trailing
// copy-like words ("-copy", "_old"). A number directly after a copy word
// ("-copy-2") is dropped with it; other numbers are part of the name.
func normalizeRepoName(name string) string {
	words := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	for len(words) > 1 {
		last := words[len(words)-1]
		if slices.Contains(duplicateNameSuffixes, last) {
			words = words[:len(words)-1]
			continue
		}
		if isNumber(last) && len(words) > 2 && slices.Contains(duplicateNameSuffixes, words[len(words)-2]) {
			words = words[:len(words)-2]
			continue
		}
		break
	}
	return strings.Join(words, "")
}

func isNumber(s string) bool {
	return s != "" && strings.TrimFunc(s, unicode.IsDigit) == ""
}

func stripDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return -1
		}
		return r
	}, s)
}

// duplicateGroup is a set of duplicate repositories and the member that
// survives consolidation.
type duplicateGroup struct {
	Canonical *model.Repository
	Members   []*model.Repository
}

// groupDuplicates partitions repos into duplicate groups of two or more
// members. Repositories with an explicit group are grouped by that name only;
// the policy is applied to the others, transitively.
func groupDuplicates(repos []*model.Repository, policy DuplicatePolicy) []*duplicateGroup {
	parent := make([]int, len(repos))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	union := func(i, j int) {
		ri, rj := find(i), find(j)
		if ri != rj {
			parent[rj] = ri
		}
	}

	explicit := make(map[string]int)
	for i, repo := range repos {
		if repo.DuplicateGroup == "" {
			continue
		}
		if j, ok := explicit[repo.DuplicateGroup]; ok {
			union(j, i)
		} else {
			explicit[repo.DuplicateGroup] = i
		}
	}

	if policy != nil {
		for i := range repos {
			if repos[i].DuplicateGroup != "" {
				continue
			}
			for j := i + 1; j < len(repos); j++ {
				if repos[j].DuplicateGroup != "" {
					continue
				}
				if policy(repos[i], repos[j]) {
					union(i, j)
				}
			}
		}
	}

	members := make(map[int][]*model.Repository)
	for i, repo := range repos {
		root := find(i)
		members[root] = append(members[root], repo)
	}

	var groups []*duplicateGroup
	for _, m := range members {
		if len(m) < 2 {
			continue
		}
		slices.SortFunc(m, compareCanonical)
		groups = append(groups, &duplicateGroup{Canonical: m[0], Members: m})
	}
	slices.SortFunc(groups, func(a, b *duplicateGroup) int {
		return strings.Compare(string(a.Canonical.ID), string(b.Canonical.ID))
	})
	return groups
}

// compareCanonical orders candidates for canonical: earliest created first,
// unknown creation time last, then lowest ID.
func compareCanonical(a, b *model.Repository) int {
	switch {
	case a.CreatedAt.IsZero() != b.CreatedAt.IsZero():
		if a.CreatedAt.IsZero() {
			return 1
		}
		return -1
	case !a.CreatedAt.Equal(b.CreatedAt):
		return a.CreatedAt.Compare(b.CreatedAt)
	}
	return strings.Compare(string(a.ID), string(b.ID))
}
