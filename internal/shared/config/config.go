package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"

	"nodesieve/internal/shared/types"
)

// Load 按扩展名加载配置文件（.ini 或 .yaml/.yml），缺省值来自 types.DefaultConfig。
// 出错时仍返回一份可用的默认配置，调用方只需记录警告：配置错误从不致命。
func Load(fileName string) (*types.Config, error) {
	cfg := types.DefaultConfig()

	var err error
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".yaml", ".yml":
		err = LoadYAML(cfg, fileName)
	default:
		err = LoadIni(cfg, fileName)
	}
	if err != nil {
		cfg = types.DefaultConfig()
	}
	applyEnvOverrides(cfg)
	return cfg, err
}

// LoadIni 加载 ini 行为配置文件。
func LoadIni(cfg *types.Config, fileName string) error {
	iniFile, err := ini.Load(fileName)
	if err != nil {
		return err
	}
	if err := iniFile.MapTo(cfg); err != nil {
		return fmt.Errorf("failed to map ini file %s: %w", fileName, err)
	}
	return nil
}

// LoadYAML 加载 config.yaml 格式的配置文件。
func LoadYAML(cfg *types.Config, fileName string) error {
	data, err := os.ReadFile(fileName)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", fileName, err)
	}
	return nil
}

func applyEnvOverrides(cfg *types.Config) {
	if cfg.IPRiskConf.APIKey == "" {
		overrideFromEnvString(&cfg.IPRiskConf.APIKey, "ABUSEIPDB_API_KEY")
	}
	overrideFromEnvString(&cfg.LogConf.Level, "LOG_LEVEL")
	overrideFromEnvString(&cfg.IPRiskConf.RedisURL, "REDIS_URL")
	overrideFromEnvInt(&cfg.QualityFilterConf.MaxWorkers, "MAX_WORKERS")
}

func overrideFromEnvString(target *string, envName string) {
	if v := strings.TrimSpace(os.Getenv(envName)); v != "" {
		*target = v
	}
}

func overrideFromEnvInt(target *int, envName string) {
	envValue := os.Getenv(envName)
	if envValue != "" {
		if intValue, err := strconv.Atoi(envValue); err == nil {
			*target = intValue
		}
	}
}
