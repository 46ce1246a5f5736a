package deduplication

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliasrobotics/RVD-sub000/internal/types"
)

func flawOf(id int, flawType types.FlawType, description string) *types.Flaw {
	return &types.Flaw{ID: id, Title: description, Type: flawType, Description: description}
}

func TestCheckerGrowsCorpus(t *testing.T) {
	engine := trainedEngine(t)
	records, _ := corpus()
	checker := NewChecker(engine, records)
	require.Equal(t, len(records), checker.Len())

	known := flawOf(0, types.TypeVulnerability, "Unauthenticated access to the ROS master XML-RPC API")
	dup, err := checker.IsDuplicate(known)
	require.NoError(t, err)
	assert.True(t, dup)

	fresh := flawOf(0, types.TypeExposure, "Battery management firmware leaks telemetry over Bluetooth")
	dup, err = checker.IsDuplicate(fresh)
	require.NoError(t, err)
	assert.False(t, dup)

	fresh.ID = 9
	checker.Add(fresh)
	assert.Equal(t, len(records)+1, checker.Len())

	again := flawOf(0, types.TypeExposure, "Battery management firmware leaks telemetry over Bluetooth")
	dup, err = checker.IsDuplicate(again)
	require.NoError(t, err)
	assert.True(t, dup, "flaws added after creation are part of the corpus")
	assert.Len(t, records, 8, "the caller's corpus is not modified")
}
