package services

import (
	"sort"
	"time"

	"github.com/lorrc/field-metrics/internal/core/domain"
	"github.com/lorrc/field-metrics/internal/core/stats"
)

const unassignedKey = "unassigned"

// member is one element of a known category domain.
type member struct {
	Key   string
	Label string
}

// tally accumulates counts and sums per key.
type tally struct {
	counts map[string]int64
	sums   map[string]float64
}

func newTally() *tally {
	return &tally{counts: map[string]int64{}, sums: map[string]float64{}}
}

func (t *tally) add(key string, sum float64) {
	t.addN(key, 1, sum)
}

func (t *tally) addN(key string, n int64, sum float64) {
	if key == "" {
		key = unassignedKey
	}
	t.counts[key] += n
	t.sums[key] += sum
}

// distribute builds a distribution that lists every domain member, seen or
// not, plus any extra key that was counted. Entries are sorted by count
// descending, then key ascending.
func distribute(name string, members []member, t *tally) domain.Distribution {
	d := buildEntries(name, members, t)
	sort.SliceStable(d.Entries, func(i, j int) bool {
		if d.Entries[i].Count != d.Entries[j].Count {
			return d.Entries[i].Count > d.Entries[j].Count
		}
		return d.Entries[i].Key < d.Entries[j].Key
	})
	return d
}

// distributeOrdered keeps the members' own order, for ordinal buckets.
func distributeOrdered(name string, members []member, t *tally) domain.Distribution {
	return buildEntries(name, members, t)
}

func buildEntries(name string, members []member, t *tally) domain.Distribution {
	entries := make([]domain.DistributionEntry, 0, len(members))
	known := make(map[string]bool, len(members))
	for _, m := range members {
		known[m.Key] = true
		entries = append(entries, domain.DistributionEntry{
			Key:   m.Key,
			Label: m.Label,
			Count: t.counts[m.Key],
			Sum:   stats.Round(t.sums[m.Key], 2),
		})
	}

	extras := make([]string, 0)
	for key, n := range t.counts {
		if !known[key] && (n != 0 || t.sums[key] != 0) {
			extras = append(extras, key)
		}
	}
	sort.Strings(extras)
	for _, key := range extras {
		label := key
		if key == unassignedKey {
			label = "Unassigned"
		}
		entries = append(entries, domain.DistributionEntry{
			Key:   key,
			Label: label,
			Count: t.counts[key],
			Sum:   stats.Round(t.sums[key], 2),
		})
	}
	return domain.Distribution{Name: name, Entries: entries}
}

func entityMembers(ents []domain.DomainEntity) []member {
	out := make([]member, len(ents))
	for i, e := range ents {
		out[i] = member{Key: e.ID, Label: e.Name}
	}
	return out
}

func statusMembers() []member {
	out := make([]member, len(domain.TicketStatuses))
	for i, s := range domain.TicketStatuses {
		out[i] = member{Key: string(s), Label: humanize(string(s))}
	}
	return out
}

func priorityMembers() []member {
	out := make([]member, len(domain.TicketPriorities))
	for i, p := range domain.TicketPriorities {
		out[i] = member{Key: string(p), Label: humanize(string(p))}
	}
	return out
}

func stageMembers() []member {
	out := make([]member, len(domain.OfferStages))
	for i, s := range domain.OfferStages {
		out[i] = member{Key: string(s), Label: humanize(string(s))}
	}
	return out
}

// humanize turns "ONSITE_IN_PROGRESS" into "Onsite in progress".
func humanize(s string) string {
	b := []byte(s)
	for i, c := range b {
		switch {
		case c == '_':
			b[i] = ' '
		case i > 0 && c >= 'A' && c <= 'Z':
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func sortEntities(ents []domain.DomainEntity) {
	sort.SliceStable(ents, func(i, j int) bool { return ents[i].ID < ents[j].ID })
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

// ref renders an entity reference for rows, nil when unset.
func ref(id string, idx domain.EntityIndex) any {
	if id == "" {
		return nil
	}
	return map[string]any{"id": id, "name": idx.Name(id)}
}

func metric(key, label string, value float64, dt domain.DataType) domain.Metric {
	return domain.Metric{Key: key, Label: label, Value: value, DataType: dt}
}

func count(key, label string, n int) domain.Metric {
	return metric(key, label, float64(n), domain.TypeNumber)
}

func timeOrNil(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return *t
}

func minutesOrNil(v *float64) any {
	if v == nil {
		return nil
	}
	return stats.Round(*v, 2)
}
