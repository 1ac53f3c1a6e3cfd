package domain_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/univote/ballotbox/internal/core/domain"
)

func TestSetSelectionDeduplicates(t *testing.T) {
	draft := domain.NewBallotDraft(uuid.New(), uuid.New())
	position := uuid.New()
	candidate := uuid.New()

	draft.SetSelection(position, []uuid.UUID{candidate, candidate})

	pv, ok := draft.Selection(position)
	require.True(t, ok)
	assert.Equal(t, []uuid.UUID{candidate}, pv.CandidateIDs)
}

func TestSetAbstainClearsCandidates(t *testing.T) {
	draft := domain.NewBallotDraft(uuid.New(), uuid.New())
	position := uuid.New()

	draft.SetSelection(position, []uuid.UUID{uuid.New(), uuid.New()})
	draft.SetAbstain(position)

	pv, ok := draft.Selection(position)
	require.True(t, ok)
	assert.True(t, pv.Abstain)
	assert.Empty(t, pv.CandidateIDs)
}

func TestSetSelectionClearsAbstain(t *testing.T) {
	draft := domain.NewBallotDraft(uuid.New(), uuid.New())
	position := uuid.New()
	candidate := uuid.New()

	draft.SetAbstain(position)
	draft.SetSelection(position, []uuid.UUID{candidate})

	pv, _ := draft.Selection(position)
	assert.False(t, pv.Abstain)
	assert.Equal(t, []uuid.UUID{candidate}, pv.CandidateIDs)
}

func TestToggleCandidate(t *testing.T) {
	draft := domain.NewBallotDraft(uuid.New(), uuid.New())
	position := uuid.New()
	candidate := uuid.New()

	assert.True(t, draft.ToggleCandidate(position, candidate))
	pv, _ := draft.Selection(position)
	assert.Contains(t, pv.CandidateIDs, candidate)

	assert.False(t, draft.ToggleCandidate(position, candidate))
	pv, _ = draft.Selection(position)
	assert.Empty(t, pv.CandidateIDs)
}

func TestPositionOrderIsFirstTouch(t *testing.T) {
	draft := domain.NewBallotDraft(uuid.New(), uuid.New())
	first, second := uuid.New(), uuid.New()

	draft.SetSelection(first, []uuid.UUID{uuid.New()})
	draft.SetSelection(second, []uuid.UUID{uuid.New()})
	draft.SetSelection(first, []uuid.UUID{uuid.New()}) // re-touch must not reorder

	require.Len(t, draft.PositionVotes, 2)
	assert.Equal(t, first, draft.PositionVotes[0].PositionID)
	assert.Equal(t, second, draft.PositionVotes[1].PositionID)
}

func TestClearPosition(t *testing.T) {
	draft := domain.NewBallotDraft(uuid.New(), uuid.New())
	position := uuid.New()

	draft.SetSelection(position, []uuid.UUID{uuid.New()})
	draft.ClearPosition(position)

	_, ok := draft.Selection(position)
	assert.False(t, ok)
}

func TestCloneIsDeep(t *testing.T) {
	draft := domain.NewBallotDraft(uuid.New(), uuid.New())
	position := uuid.New()
	draft.SetSelection(position, []uuid.UUID{uuid.New()})

	clone := draft.Clone()
	clone.SetSelection(position, []uuid.UUID{uuid.New(), uuid.New()})

	pv, _ := draft.Selection(position)
	assert.Len(t, pv.CandidateIDs, 1)
}
