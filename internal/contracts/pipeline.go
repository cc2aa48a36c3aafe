package contracts

// Pipeline Stage 정의 (SSOT)
// 모든 로그, 거절 사유, DB row에서 이 상수를 사용해야 함
//
// 파이프라인 흐름:
//   S0 → S1 → S2 → S3 → S4 → S5
//   Data  Scoring  PercentileGate  Indicators  LatestBar  RuleFilter

// Stage represents a pipeline stage
type Stage string

const (
	// StageData S0: Series 로드
	// 책임: provider 호출, 티커별 실패 격리
	// 위치: internal/s0_data/
	StageData Stage = "S0_DATA"

	// StageScoring S1: RS 점수 + 백분위
	// 책임: 최소 이력 미달/앵커 0 → Ineligible
	// 위치: internal/s2_signals/rs.go, internal/selection/ranker.go
	StageScoring Stage = "S1_SCORING"

	// StagePercentileGate S2: 백분위 게이트
	// 위치: internal/selection/pipeline.go
	StagePercentileGate Stage = "S2_PERCENTILE_GATE"

	// StageIndicators S3: 기술적 지표 계산 (게이트 통과 종목만)
	// 위치: internal/s2_signals/indicators.go
	StageIndicators Stage = "S3_INDICATORS"

	// StageLatestBar S4: 최신 계산 가능 bar 추출
	// 위치: internal/selection/pipeline.go
	StageLatestBar Stage = "S4_LATEST_BAR"

	// StageRuleFilter S5: ScreenCriteria 조건 AND 평가
	// 위치: internal/selection/screener.go
	StageRuleFilter Stage = "S5_RULE_FILTER"
)

// String returns the stage name
func (s Stage) String() string {
	return string(s)
}

// ShortName returns abbreviated stage name (e.g., "S0", "S1")
func (s Stage) ShortName() string {
	switch s {
	case StageData:
		return "S0"
	case StageScoring:
		return "S1"
	case StagePercentileGate:
		return "S2"
	case StageIndicators:
		return "S3"
	case StageLatestBar:
		return "S4"
	case StageRuleFilter:
		return "S5"
	default:
		return "UNKNOWN"
	}
}

// Description returns a human readable description of the stage
func (s Stage) Description() string {
	switch s {
	case StageData:
		return "series load"
	case StageScoring:
		return "RS score / percentile"
	case StagePercentileGate:
		return "percentile gate"
	case StageIndicators:
		return "indicator computation"
	case StageLatestBar:
		return "latest bar extraction"
	case StageRuleFilter:
		return "rule filter"
	default:
		return "unknown"
	}
}

// AllStages returns all pipeline stages in order
func AllStages() []Stage {
	return []Stage{
		StageData,
		StageScoring,
		StagePercentileGate,
		StageIndicators,
		StageLatestBar,
		StageRuleFilter,
	}
}

// IsValidStage checks if a stage string is valid
func IsValidStage(s string) bool {
	for _, stage := range AllStages() {
		if string(stage) == s {
			return true
		}
	}
	return false
}

// Rejection records the stage that removed a ticker from the run
type Rejection struct {
	Ticker string `json:"ticker"`
	Stage  Stage  `json:"stage"`
	Reason string `json:"reason"`
}
