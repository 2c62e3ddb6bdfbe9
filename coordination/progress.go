package coordination

// ProgressFunc receives stage-transition updates. Percent values within one
// attempt are monotonic; a restart pulls the percent back down by a fixed
// penalty so the rework is visible to the caller.
type ProgressFunc func(message string, percent int, stageID string)

const (
	restartPenalty    = 15
	maxRestartPenalty = 30
)

var stagePercent = map[string]int{
	StageComposer:        10,
	StageArranger:        20,
	StageLyricist:        30,
	StageVocalist:        45,
	StageInstrumentalist: 60,
	StageEffects:         70,
	StageReviewer:        80,
	StageDesigner:        90,
	StageQA:              95,
}

var stageMessages = map[string]string{
	StageComposer:        "🎼 Choosing tempo, key and duration",
	StageArranger:        "🏗️  Planning sections and tracks",
	StageLyricist:        "📝 Writing lyrics",
	StageVocalist:        "🎤 Setting lyrics to melody",
	StageInstrumentalist: "🎹 Writing instrument parts",
	StageEffects:         "🎚️  Mixing effects",
	StageReviewer:        "🔍 Reviewing the draft",
	StageDesigner:        "🎨 Designing the album cover",
	StageQA:              "🧪 Final quality check",
}

// progressPercent computes a stage's reported percent after the restart
// penalty, floored at the stage base minus the penalty cap.
func progressPercent(stage string, restarts int) int {
	base, ok := stagePercent[stage]
	if !ok {
		return 0
	}
	penalty := restarts * restartPenalty
	if penalty > maxRestartPenalty {
		penalty = maxRestartPenalty
	}
	percent := base - penalty
	if percent < 1 {
		percent = 1
	}
	return percent
}
