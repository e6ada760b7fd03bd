package scheduling

import (
	"sort"

	"studiodesk/internal/domain"
)

type Slot struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// freeSlots subtracts the busy intervals from [open, close) and returns what
// is left, in order.
func freeSlots(open, close int, busy []Interval) []Interval {
	if len(busy) == 0 {
		return []Interval{{Start: open, End: close}}
	}

	sort.Slice(busy, func(i, j int) bool { return busy[i].Start < busy[j].Start })

	merged := make([]Interval, 0, len(busy))
	for _, b := range busy {
		if b.End <= open || b.Start >= close {
			continue
		}
		if b.Start < open {
			b.Start = open
		}
		if b.End > close {
			b.End = close
		}
		if b.End <= b.Start {
			continue
		}

		if len(merged) == 0 {
			merged = append(merged, b)
			continue
		}
		last := &merged[len(merged)-1]
		if b.Start <= last.End {
			if b.End > last.End {
				last.End = b.End
			}
		} else {
			merged = append(merged, b)
		}
	}

	cur := open
	out := make([]Interval, 0, len(merged)+1)
	for _, b := range merged {
		if b.Start > cur {
			out = append(out, Interval{Start: cur, End: b.Start})
		}
		if b.End > cur {
			cur = b.End
		}
	}
	if cur < close {
		out = append(out, Interval{Start: cur, End: close})
	}
	return out
}

func toSlots(in []Interval) []Slot {
	out := make([]Slot, 0, len(in))
	for _, i := range in {
		out = append(out, Slot{Start: domain.FormatClock(i.Start), End: domain.FormatClock(i.End)})
	}
	return out
}
