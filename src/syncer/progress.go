package syncer

// Stage names a step of a sync call.
type Stage string

const (
	StageFetching   Stage = "fetching runs"
	StageFiltering  Stage = "matching selectors"
	StagePersisting Stage = "persisting runs"
	StageHydrating  Stage = "parsing test reports"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

// Progress is reported at every stage transition and after each hydrated run.
type Progress struct {
	Stage   Stage
	Current int
	Total   int
	Message string
}

func (s *Syncer) report(p Progress) {
	if s.progress != nil {
		s.progress(p)
	}
}
