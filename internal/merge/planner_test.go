package merge

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlanCollisions(t *testing.T) {
	got := PlanCollisions([]string{"Run", "Swim", "Plank", "Run"}, []string{"Plank", "Run", "Row"})
	require.Equal(t, []string{"Run", "Plank"}, got)
}

func TestPlanCollisionsNone(t *testing.T) {
	require.Empty(t, PlanCollisions([]string{"Swim"}, []string{"Run"}))
	require.Empty(t, PlanCollisions(nil, []string{"Run"}))
}

func TestCollisionNamesByPolicy(t *testing.T) {
	collisions := []string{"Run"}
	require.Equal(t, collisions, CollisionNames(collisions, PolicyMerge))
	require.Empty(t, CollisionNames(collisions, PolicySplit))
	require.Equal(t, "merge", PolicyMerge.String())
	require.Equal(t, "split", PolicySplit.String())
}
