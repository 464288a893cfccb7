package bills

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/billtrack/billtrack/internal/shared"
)

// Stage is one position in the legislative pipeline.
type Stage string

// Pipeline stages in process order.
const (
	StageIntroduced                  Stage = "introduced"
	StageCommitteeScheduled          Stage = "committee_scheduled"
	StageCommitteeDeferred           Stage = "committee_deferred"
	StagePassedChamber               Stage = "passed_chamber"
	StageCrossover                   Stage = "crossover"
	StageCrossoverCommitteeScheduled Stage = "crossover_committee_scheduled"
	StageCrossoverCommitteeDeferred  Stage = "crossover_committee_deferred"
	StagePassedCrossover             Stage = "passed_crossover"
	StageConference                  Stage = "conference"
	StageAwaitingGovernor            Stage = "awaiting_governor"
	StageGovernorAmended             Stage = "governor_amended"
	StageSigned                      Stage = "signed"
	StageVetoed                      Stage = "vetoed"
	StageLawWithoutSignature         Stage = "law_without_signature"
	StageFailed                      Stage = "failed"
)

// StageInfo describes a stage for catalog listings.
type StageInfo struct {
	Key      Stage  `json:"key"`
	Label    string `json:"label"`
	Position int    `json:"position"`
	Terminal bool   `json:"terminal"`
}

var (
	stageOrder = []Stage{
		StageIntroduced,
		StageCommitteeScheduled,
		StageCommitteeDeferred,
		StagePassedChamber,
		StageCrossover,
		StageCrossoverCommitteeScheduled,
		StageCrossoverCommitteeDeferred,
		StagePassedCrossover,
		StageConference,
		StageAwaitingGovernor,
		StageGovernorAmended,
		StageSigned,
		StageVetoed,
		StageLawWithoutSignature,
		StageFailed,
	}
	terminalStages = map[Stage]bool{
		StageSigned:              true,
		StageVetoed:              true,
		StageLawWithoutSignature: true,
		StageFailed:              true,
	}
	stagePositions = func() map[Stage]int {
		m := make(map[Stage]int, len(stageOrder))
		for i, s := range stageOrder {
			m[s] = i + 1
		}
		return m
	}()
	stageCatalog = func() []StageInfo {
		title := cases.Title(language.English)
		infos := make([]StageInfo, 0, len(stageOrder))
		for i, s := range stageOrder {
			infos = append(infos, StageInfo{
				Key:      s,
				Label:    title.String(strings.ReplaceAll(string(s), "_", " ")),
				Position: i + 1,
				Terminal: terminalStages[s],
			})
		}
		return infos
	}()
)

// Stages returns the fixed stage catalog in pipeline order.
func Stages() []StageInfo {
	out := make([]StageInfo, len(stageCatalog))
	copy(out, stageCatalog)
	return out
}

// ParseStage validates a stage key. Unknown keys are rejected, never clamped.
func ParseStage(raw string) (Stage, error) {
	s := Stage(strings.TrimSpace(raw))
	if !s.Valid() {
		return "", fmt.Errorf("bills: stage %q: %w", raw, shared.ErrInvalidInput)
	}
	return s, nil
}

// Valid reports whether s belongs to the catalog.
func (s Stage) Valid() bool {
	_, ok := stagePositions[s]
	return ok
}

// Position returns the 1-based pipeline position, zero for unknown stages.
func (s Stage) Position() int {
	return stagePositions[s]
}

// Terminal reports whether s is a final outcome.
func (s Stage) Terminal() bool {
	return terminalStages[s]
}

// Label returns the display name of s.
func (s Stage) Label() string {
	if p := s.Position(); p > 0 {
		return stageCatalog[p-1].Label
	}
	return string(s)
}

// Before reports whether s comes earlier in the pipeline than other.
func (s Stage) Before(other Stage) bool {
	return s.Position() < other.Position()
}
