package comparison

import "fmt"

// Phase は比較画面の処理段階を表す。
type Phase string

const (
	PhaseLoading   Phase = "loading"
	PhaseReady     Phase = "ready"
	PhaseError     Phase = "error"
	PhaseIdle      Phase = "idle"
	PhaseSaving    Phase = "saving"
	PhaseSaved     Phase = "saved"
	PhaseSaveError Phase = "save_error"
)

// transitions は許可される遷移。save_error→savingは再試行。
var transitions = map[Phase][]Phase{
	PhaseLoading:   {PhaseReady, PhaseError},
	PhaseReady:     {PhaseIdle},
	PhaseIdle:      {PhaseSaving},
	PhaseSaving:    {PhaseSaved, PhaseSaveError},
	PhaseSaveError: {PhaseSaving},
}

// CanTransition はfromからtoへの遷移が許可されているかを返す。
func CanTransition(from, to Phase) bool {
	for _, p := range transitions[from] {
		if p == to {
			return true
		}
	}
	return false
}

// Terminal は終端の段階かどうかを返す。
func (p Phase) Terminal() bool {
	return p == PhaseError || p == PhaseSaved
}

// Advance はfromからtoへ遷移する。許可されていない遷移はエラーを返す。
func Advance(from, to Phase) (Phase, error) {
	if !CanTransition(from, to) {
		return from, fmt.Errorf("invalid comparison phase transition: %s -> %s", from, to)
	}
	return to, nil
}
