package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wonny/rsscreen/internal/strategyconfig"
)

// configCmd inspects the strategy YAML
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "전략 설정 검증/조회",
}

var (
	configValidateCmd = &cobra.Command{
		Use:   "validate",
		Short: "설정 검증 (오류 시 non-zero 종료)",
		RunE:  validateConfig,
	}

	configHashCmd = &cobra.Command{
		Use:   "hash [variant]",
		Short: "설정 해시 출력 (variant 지정 시 실행 스냅샷)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  hashConfig,
	}
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configHashCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	path := strategyPath()
	cfg, _, err := strategyconfig.Load(path)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	PrintSuccess(fmt.Sprintf("%s is valid (%d variants)", path, len(cfg.Variants)))
	for _, name := range cfg.VariantNames() {
		v := cfg.Variants[name]
		fmt.Printf("  - %s: min_percentile=%d\n", name, v.MinPercentile)
		for _, rule := range v.RuleTexts() {
			fmt.Printf("      %s\n", rule)
		}
	}
	for _, w := range strategyconfig.Warn(cfg) {
		PrintWarning(fmt.Sprintf("[%s] %s", w.Code, w.Message))
	}
	return nil
}

func hashConfig(cmd *cobra.Command, args []string) error {
	cfg, raw, err := strategyconfig.Load(strategyPath())
	if err != nil {
		return err
	}

	if len(args) == 0 {
		hash, err := strategyconfig.Hash(cfg)
		if err != nil {
			return err
		}
		fmt.Println(hash)
		return nil
	}

	snapshot, err := strategyconfig.NewRunSnapshot(cfg, raw, args[0])
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// strategyPath resolves --config without loading env config
func strategyPath() string {
	if strategyFile != "" {
		return strategyFile
	}
	if p := os.Getenv("SCREEN_CONFIG"); p != "" {
		return p
	}
	return "config/screen.yaml"
}
