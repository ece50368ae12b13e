package domain

import "sort"

// TaskKey identifies a task unit: the move lines sharing one package,
// product and source location.
type TaskKey struct {
	PackageID  string `json:"packageId,omitempty"`
	ProductID  string `json:"productId"`
	LocationID string `json:"locationId"`
}

// Task is the next indivisible unit of work within a batch. It is a
// computed view over move lines, never persisted or mutated on its own.
//
// NumTasksToPick counts the task units still outstanding INCLUDING the
// one being returned, under both scan policies.
type Task struct {
	Key            TaskKey    `json:"key"`
	MoveLines      []MoveLine `json:"moveLines"`
	NumTasksToPick int        `json:"numTasksToPick"`
	TasksPicked    bool       `json:"tasksPicked"`
}

// Empty reports whether there is no work left to plan.
func (t Task) Empty() bool {
	return len(t.MoveLines) == 0
}

// MoveLineIDs returns the ids of the task's move lines.
func (t Task) MoveLineIDs() []string {
	ids := make([]string, 0, len(t.MoveLines))
	for _, ml := range t.MoveLines {
		ids = append(ids, ml.LineID)
	}
	return ids
}

// PlanNextTask computes the next task from the move lines of a batch's
// assigned pickings. Lines of skipped products and fully picked lines
// are excluded from planning; TasksPicked reflects whether any line of
// the batch is already fully picked.
//
// Candidates are sorted by (location, product, line id) so repeated
// calls without intervening mutation return the same sequence. Lines
// are then grouped by (package, product, location); the first group in
// sort order is the candidate. Under ScanByProduct the task is that
// single group and the count is the number of remaining groups. Under
// ScanByPackage the task is every line sharing the candidate's package
// and the count is the number of distinct outstanding packages.
func PlanNextTask(lines []MoveLine, policies map[string]ScanPolicy, skippedProductIDs []string) Task {
	task := Task{MoveLines: make([]MoveLine, 0)}

	skipped := make(map[string]struct{}, len(skippedProductIDs))
	for _, id := range skippedProductIDs {
		skipped[id] = struct{}{}
	}

	todo := make([]MoveLine, 0, len(lines))
	for _, ml := range lines {
		if ml.Completed() {
			task.TasksPicked = true
			continue
		}
		if _, skip := skipped[ml.ProductID]; skip {
			continue
		}
		todo = append(todo, ml)
	}

	if len(todo) == 0 {
		return task
	}

	sort.SliceStable(todo, func(i, j int) bool {
		if todo[i].LocationID != todo[j].LocationID {
			return todo[i].LocationID < todo[j].LocationID
		}
		if todo[i].ProductID != todo[j].ProductID {
			return todo[i].ProductID < todo[j].ProductID
		}
		return todo[i].LineID < todo[j].LineID
	})

	key := func(ml MoveLine) TaskKey {
		return TaskKey{PackageID: ml.PackageID, ProductID: ml.ProductID, LocationID: ml.LocationID}
	}

	groups := make(map[TaskKey][]MoveLine)
	order := make([]TaskKey, 0)
	for _, ml := range todo {
		k := key(ml)
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], ml)
	}

	first := order[0]
	task.Key = first

	policy := ScanByProduct
	if p, ok := policies[groups[first][0].PickingID]; ok {
		policy = p
	}

	if policy == ScanByProduct {
		task.MoveLines = groups[first]
		task.NumTasksToPick = len(order)
		return task
	}

	packages := make(map[string]struct{})
	for _, ml := range todo {
		// Loose lines have no package and do not count as a package task.
		if ml.PackageID != "" {
			packages[ml.PackageID] = struct{}{}
		}
		if ml.PackageID == first.PackageID {
			task.MoveLines = append(task.MoveLines, ml)
		}
	}
	task.NumTasksToPick = len(packages)

	return task
}
