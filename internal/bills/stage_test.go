package bills

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/billtrack/billtrack/internal/shared"
)

func TestStageCatalogOrder(t *testing.T) {
	stages := Stages()
	require.Len(t, stages, 15)
	require.Equal(t, StageIntroduced, stages[0].Key)
	require.Equal(t, StageFailed, stages[len(stages)-1].Key)
	for i, info := range stages {
		require.Equal(t, i+1, info.Position)
		require.Equal(t, info.Position, info.Key.Position())
	}
	require.Equal(t, "Crossover Committee Scheduled", StageCrossoverCommitteeScheduled.Label())
}

func TestStagesReturnsCopy(t *testing.T) {
	stages := Stages()
	stages[0].Label = "mutated"
	require.Equal(t, "Introduced", Stages()[0].Label)
}

func TestTerminalStages(t *testing.T) {
	terminal := map[Stage]bool{}
	for _, info := range Stages() {
		if info.Terminal {
			terminal[info.Key] = true
		}
	}
	require.Equal(t, map[Stage]bool{
		StageSigned:              true,
		StageVetoed:              true,
		StageLawWithoutSignature: true,
		StageFailed:              true,
	}, terminal)
	require.False(t, StageConference.Terminal())
}

func TestParseStage(t *testing.T) {
	stage, err := ParseStage(" passed_chamber ")
	require.NoError(t, err)
	require.Equal(t, StagePassedChamber, stage)

	for _, raw := range []string{"", "Passed_Chamber", "pending", "done"} {
		_, err := ParseStage(raw)
		require.ErrorIs(t, err, shared.ErrInvalidInput, raw)
	}
}

func TestStageBefore(t *testing.T) {
	require.True(t, StageIntroduced.Before(StageCommitteeScheduled))
	require.False(t, StageSigned.Before(StageAwaitingGovernor))
	require.Zero(t, Stage("bogus").Position())
}
