package strategyconfig

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"

	"github.com/wonny/rsscreen/internal/export"
	"github.com/wonny/rsscreen/internal/s2_signals"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// structValidator reports field paths using yaml names (e.g. rs.min_bars)
var structValidator = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks all required constraints
// 실패 시 error 반환 (프로그램 중단)
func Validate(cfg *Config) error {
	// === 필드 범위 (validator 태그) ===
	if err := structValidator.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			field := strings.TrimPrefix(fe.Namespace(), "Config.")
			msg := fe.Tag()
			if fe.Param() != "" {
				msg += "=" + fe.Param()
			}
			return ValidationError{field, fmt.Sprintf("failed %s (value %v)", msg, fe.Value())}
		}
		return ValidationError{"config", err.Error()}
	}

	// === RS ===
	if len(cfg.RS.LookbacksDays) != len(cfg.RS.Weights) {
		return ValidationError{"rs", "lookbacks_days length must match weights length"}
	}
	if err := validateWeightsSum(cfg.RS.Weights, 1.0, 1e-6); err != nil {
		return ValidationError{"rs.weights", err.Error()}
	}

	// === Universe ===
	switch cfg.Universe.Source {
	case "file":
		if cfg.Universe.File == "" {
			return ValidationError{"universe.file", "required when source is file"}
		}
	case "index":
		if len(cfg.Universe.Indexes) == 0 {
			return ValidationError{"universe.indexes", "required when source is index"}
		}
	}

	// === Data ===
	if cfg.Data.Provider == "csv" && cfg.Data.CSVPath == "" {
		return ValidationError{"data.csv_path", "required when provider is csv"}
	}

	// === Variants ===
	for _, name := range cfg.VariantNames() {
		if err := validateVariant(name, cfg.Variants[name]); err != nil {
			return err
		}
	}

	// === Schedule ===
	if cfg.Schedule.Cron != "" {
		if _, err := cron.ParseStandard(cfg.Schedule.Cron); err != nil {
			return ValidationError{"schedule.cron", err.Error()}
		}
	}
	if cfg.Schedule.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Schedule.Timezone); err != nil {
			return ValidationError{"schedule.timezone", err.Error()}
		}
	}
	for i, name := range cfg.Schedule.Variants {
		if _, ok := cfg.Variants[name]; !ok {
			return ValidationError{
				Field:   fmt.Sprintf("schedule.variants[%d]", i),
				Message: fmt.Sprintf("unknown variant %q", name),
			}
		}
	}

	return nil
}

func validateVariant(name string, v Variant) error {
	prefix := "variants." + name

	if r := v.Criteria.ATRPctRange; r != nil && r.Max > 0 && r.Min > r.Max {
		return ValidationError{prefix + ".criteria.atr_pct_range", "min must be <= max"}
	}
	if s := v.Indicators.Streak; s != nil && !(s.Short < s.Mid && s.Mid < s.Long) {
		return ValidationError{prefix + ".indicators.streak", "must satisfy short < mid < long"}
	}

	engine, err := s2_signals.NewIndicatorEngine(v.IndicatorConfig())
	if err != nil {
		return ValidationError{prefix + ".indicators", err.Error()}
	}

	criteria, err := v.BuildCriteria()
	if err != nil {
		return ValidationError{prefix + ".rules", err.Error()}
	}
	// 존재하지 않는 지표 참조는 실행 전에 실패
	if err := criteria.Validate(engine.HasIndicator); err != nil {
		return ValidationError{prefix + ".rules", err.Error()}
	}

	for i, col := range v.Export.Columns {
		if col == export.ColumnSector || col == export.ColumnIndustry {
			continue
		}
		if !engine.HasIndicator(col) {
			return ValidationError{
				Field:   fmt.Sprintf("%s.export.columns[%d]", prefix, i),
				Message: fmt.Sprintf("unknown indicator %q", col),
			}
		}
	}

	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	// 최소 이력 30 미만 경고
	if cfg.RS.MinBars < 30 {
		warnings = append(warnings, Warning{
			Code:    "SHORT_MIN_BARS",
			Message: fmt.Sprintf("rs.min_bars=%d < 30: 신규 상장 종목 점수 불안정", cfg.RS.MinBars),
		})
	}

	for _, name := range cfg.VariantNames() {
		v := cfg.Variants[name]

		if v.MinPercentile < 80 {
			warnings = append(warnings, Warning{
				Code:    "WIDE_GATE",
				Message: fmt.Sprintf("variants.%s.min_percentile=%d < 80: 지표 계산 대상 과다", name, v.MinPercentile),
			})
		}
		if v.Criteria.MinAvgDollarVolume == 0 {
			warnings = append(warnings, Warning{
				Code:    "NO_LIQUIDITY_FLOOR",
				Message: fmt.Sprintf("variants.%s: 거래대금 하한 없음", name),
			})
		}
	}

	return warnings
}

// === Helper Functions ===

func validateWeightsSum(weights []float64, target float64, epsilon float64) error {
	if len(weights) == 0 {
		return errors.New("must not be empty")
	}
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if math.Abs(sum-target) > epsilon {
		return fmt.Errorf("must sum to %.2f, got %.4f", target, sum)
	}
	return nil
}
