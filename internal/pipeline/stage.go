package pipeline

import "time"

// Stage names one pipeline step.
type Stage string

const (
	StageCondition Stage = "condition"
	StageRecognize Stage = "recognize"
	StageNormalize Stage = "normalize"
	StageDetect    Stage = "detect"
	StageTranslate Stage = "translate"
)

// Stages lists the steps in execution order.
func Stages() []Stage {
	return []Stage{StageCondition, StageRecognize, StageNormalize, StageDetect, StageTranslate}
}

// StageObserver is notified after every completed stage.
type StageObserver interface {
	OnStage(stage Stage, elapsed time.Duration)
}

// StageFunc adapts a function to StageObserver.
type StageFunc func(stage Stage, elapsed time.Duration)

// OnStage calls f.
func (f StageFunc) OnStage(stage Stage, elapsed time.Duration) { f(stage, elapsed) }

type multiObserver []StageObserver

func (m multiObserver) OnStage(stage Stage, elapsed time.Duration) {
	for _, o := range m {
		if o != nil {
			o.OnStage(stage, elapsed)
		}
	}
}
