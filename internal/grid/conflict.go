package grid

import (
	"sort"
	"strconv"
	"strings"

	"wstcal/internal/model"
)

// Group sweeps the rows of g for one day and run-length encodes the set of
// blocks active on each row. Consecutive rows with the same active set form
// one group; rows with no active block are omitted. Groups with two or more
// members are conflicts.
func Group(g *SlotGrid, day model.Day, blocks []model.PlacedBlock) []model.ConflictGroup {
	var (
		groups  []model.ConflictGroup
		current *model.ConflictGroup
		sig     string
	)
	flush := func() {
		if current != nil {
			groups = append(groups, *current)
		}
		current = nil
		sig = ""
	}

	for r := 0; r < g.Rows(); r++ {
		active := activeAt(blocks, r)
		if len(active) == 0 {
			flush()
			continue
		}
		key := signature(active)
		if current != nil && key == sig {
			current.End = r + 1
			continue
		}
		flush()
		current = &model.ConflictGroup{
			Day:        day,
			Start:      r,
			End:        r + 1,
			Members:    active,
			IsConflict: len(active) > 1,
		}
		sig = key
	}
	flush()

	return groups
}

// activeAt returns the sorted ids of blocks covering row r.
func activeAt(blocks []model.PlacedBlock, r int) []int {
	var ids []int
	for _, b := range blocks {
		if b.RowStart <= r && r < b.RowEnd() {
			ids = append(ids, b.ID)
		}
	}
	sort.Ints(ids)
	return ids
}

func signature(ids []int) string {
	s := make([]string, len(ids))
	for i, id := range ids {
		s[i] = strconv.Itoa(id)
	}
	return strings.Join(s, "|")
}

// Summaries collects, for every conflict group, the distinct owner ids of its
// members. Sets with fewer than two owners are dropped (a course overlapping
// itself is not a conflict). Each set is sorted and reported once across all
// groups and days, in first-seen order.
func Summaries(groups []model.ConflictGroup, blocks map[int]model.PlacedBlock) [][]string {
	seen := make(map[string]bool)
	var out [][]string

	for _, grp := range groups {
		if !grp.IsConflict {
			continue
		}
		owners := ownersOf(grp, blocks)
		if len(owners) < 2 {
			continue
		}
		key := strings.Join(owners, "\x00")
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, owners)
	}
	return out
}

func ownersOf(grp model.ConflictGroup, blocks map[int]model.PlacedBlock) []string {
	set := make(map[string]bool)
	var owners []string
	for _, id := range grp.Members {
		b, ok := blocks[id]
		if !ok || b.OwnerID == "" || set[b.OwnerID] {
			continue
		}
		set[b.OwnerID] = true
		owners = append(owners, b.OwnerID)
	}
	sort.Strings(owners)
	return owners
}
