package logistics

import (
	"fmt"
	"sort"
)

// Selector picks the next task greedily: highest requester priority first,
// ties broken by generation order so unchanged state always yields the same winner.
type Selector struct {
	prefix string
	next   uint64
}

func NewSelector(idPrefix string) *Selector {
	return &Selector{prefix: idPrefix}
}

// Rank sorts tasks in place and returns them.
func Rank(tasks []*Task) []*Task {
	sort.SliceStable(tasks, func(i, j int) bool {
		pi, pj := tasks[i].Requester.Priority(), tasks[j].Requester.Priority()
		if pi != pj {
			return pi > pj
		}
		return tasks[i].Seq < tasks[j].Seq
	})
	return tasks
}

// Candidates returns the ranked candidate set for held without consuming it.
func (s *Selector) Candidates(reg *Registry, held Resource) []*Task {
	if reg == nil {
		return nil
	}
	return Rank(reg.TasksFor(held))
}

// Select returns the best task, or false when nothing is viable.
func (s *Selector) Select(reg *Registry, held Resource) (*Task, bool) {
	tasks := s.Candidates(reg, held)
	if len(tasks) == 0 {
		return nil, false
	}
	t := tasks[0]
	s.next++
	t.ID = fmt.Sprintf("%sT%d", s.prefix, s.next)
	return t, true
}
