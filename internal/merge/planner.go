package merge

import "github.com/samber/lo"

// CollisionPolicy is the single user decision applied to every colliding name of one merge.
type CollisionPolicy int

const (
	// PolicyMerge routes records of colliding names into the existing activity.
	PolicyMerge CollisionPolicy = iota
	// PolicySplit treats every incoming name as new and renames colliding ones.
	PolicySplit
)

func (p CollisionPolicy) String() string {
	if p == PolicySplit {
		return "split"
	}
	return "merge"
}

// PlanCollisions returns the incoming names that already exist in current, in incoming order.
func PlanCollisions(incoming []string, current []string) []string {
	existing := lo.Associate(current, func(n string) (string, struct{}) { return n, struct{}{} })
	hits := lo.Filter(incoming, func(n string, _ int) bool {
		_, ok := existing[n]
		return ok
	})
	return lo.Uniq(hits)
}

// CollisionNames returns the names that should participate in merge-skip logic under policy.
func CollisionNames(collisions []string, policy CollisionPolicy) []string {
	if policy == PolicySplit {
		return nil
	}
	return collisions
}
