package strategyconfig

import "time"

// Config는 RS 스크리너의 전체 설정 (config/screen.yaml)
type Config struct {
	Meta      Meta               `yaml:"meta" json:"meta"`
	Benchmark Benchmark          `yaml:"benchmark" json:"benchmark"`
	RS        RS                 `yaml:"rs" json:"rs"`
	Universe  Universe           `yaml:"universe" json:"universe"`
	Data      Data               `yaml:"data" json:"data"`
	Schedule  Schedule           `yaml:"schedule" json:"schedule"`
	Variants  map[string]Variant `yaml:"variants" json:"variants" validate:"required,min=1,dive"`
}

// Meta 메타 정보
type Meta struct {
	StrategyID string `yaml:"strategy_id" json:"strategy_id" validate:"required"`
	Version    string `yaml:"version" json:"version"`
}

// Benchmark 기준 지수
type Benchmark struct {
	Ticker string `yaml:"ticker" json:"ticker" validate:"required"`
	// reference: 백분위 100 고정 보고 / exclude: 결과에서 제외
	Policy string `yaml:"policy" json:"policy" validate:"omitempty,oneof=reference exclude"`
}

// RS 상대강도 점수 (S1)
type RS struct {
	LookbacksDays []int     `yaml:"lookbacks_days" json:"lookbacks_days" validate:"required,dive,min=1"`
	Weights       []float64 `yaml:"weights" json:"weights" validate:"required,dive,gt=0"` // 합 = 1.0
	MinBars       int       `yaml:"min_bars" json:"min_bars" validate:"min=1"`
}

// Universe S0: 대상 종목 풀
type Universe struct {
	Source     string   `yaml:"source" json:"source" validate:"oneof=file index database"`
	File       string   `yaml:"file" json:"file"`
	Indexes    []string `yaml:"indexes" json:"indexes" validate:"dive,oneof=sp500 sp400 sp600 nasdaq100"`
	MaxTickers int      `yaml:"max_tickers" json:"max_tickers" validate:"min=0"` // 0 = 제한 없음
}

// Data 가격 데이터 로딩
type Data struct {
	Provider    string `yaml:"provider" json:"provider" validate:"oneof=yahoo database csv"`
	CSVPath     string `yaml:"csv_path" json:"csv_path"`
	HistoryDays int    `yaml:"history_days" json:"history_days" validate:"min=1"` // 달력일 기준
	Cache       bool   `yaml:"cache" json:"cache"`
}

// Schedule 정기 실행
type Schedule struct {
	Cron     string   `yaml:"cron" json:"cron"`
	Timezone string   `yaml:"timezone" json:"timezone"`
	Variants []string `yaml:"variants" json:"variants"`
}

// Variant 스크리닝 변형 (breakout, bounce, ...)
type Variant struct {
	MinPercentile int        `yaml:"min_percentile" json:"min_percentile" validate:"min=1,max=99"`
	Indicators    Indicators `yaml:"indicators" json:"indicators"`
	Criteria      Criteria   `yaml:"criteria" json:"criteria"`
	Rules         []string   `yaml:"rules" json:"rules"`
	Export        Export     `yaml:"export" json:"export"`
}

// Indicators S3: 지표 윈도우
type Indicators struct {
	DollarVolumeWindow int     `yaml:"dollar_volume_window" json:"dollar_volume_window" validate:"min=2"`
	ATRWindow          int     `yaml:"atr_window" json:"atr_window" validate:"min=2"`
	MAWindows          []int   `yaml:"ma_windows" json:"ma_windows" validate:"dive,min=2"`
	RangeWindow        int     `yaml:"range_window" json:"range_window" validate:"min=2"`
	FlowWindow         int     `yaml:"flow_window" json:"flow_window" validate:"min=2"`
	MidHighWindow      int     `yaml:"mid_high_window" json:"mid_high_window" validate:"omitempty,min=2"`
	ExtremeHighWindow  int     `yaml:"extreme_high_window" json:"extreme_high_window" validate:"omitempty,min=2"`
	Streak             *Streak `yaml:"streak" json:"streak,omitempty"`
}

// Streak bullish_streak 이동평균
type Streak struct {
	Short int `yaml:"short" json:"short" validate:"min=2"`
	Mid   int `yaml:"mid" json:"mid" validate:"min=2"`
	Long  int `yaml:"long" json:"long" validate:"min=2"`
}

// Criteria S5: 명명된 조건 (rules로 변환)
type Criteria struct {
	MinAvgDollarVolume float64  `yaml:"min_avg_dollar_volume" json:"min_avg_dollar_volume" validate:"min=0"`
	ATRPctRange        *Range   `yaml:"atr_pct_range" json:"atr_pct_range,omitempty"`
	TrendPredicates    []string `yaml:"trend_predicates" json:"trend_predicates"`
	ProximityMaxPct    *float64 `yaml:"proximity_max_pct" json:"proximity_max_pct,omitempty" validate:"omitempty,gt=0"`
}

// Range inclusive [min, max]. max = 0 은 상한 없음
type Range struct {
	Min float64 `yaml:"min" json:"min" validate:"min=0"`
	Max float64 `yaml:"max" json:"max" validate:"min=0"`
}

// Export CSV 출력 컬럼
type Export struct {
	Columns []string `yaml:"columns" json:"columns"`
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

// RunSnapshot 실행 시점 설정 스냅샷 (재현성용)
type RunSnapshot struct {
	ConfigHash string    `json:"config_hash"`
	ConfigYAML string    `json:"config_yaml"`
	StrategyID string    `json:"strategy_id"`
	Variant    string    `json:"variant"`
	CreatedAt  time.Time `json:"created_at"`
}
