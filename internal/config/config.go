// 包 config 负责加载与校验应用配置（settings.yaml），
// 对外提供结构体 Config 及默认值/合法性校验。命令行参数可覆盖文件中的值。
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	APIKey          string   `yaml:"API_KEY"`
	ClanTag         string   `yaml:"CLAN_TAG"`
	APIBaseURL      string   `yaml:"API_BASE_URL"`
	LogoPath        string   `yaml:"LOGO_PATH"`
	FaviconPath     string   `yaml:"FAVICON_PATH"`
	DescriptionPath string   `yaml:"DESCRIPTION_PATH"`
	OutputPath      string   `yaml:"OUTPUT_PATH"`
	TempDir         string   `yaml:"TEMP_DIR"` // 空表示系统临时目录
	TimeoutSeconds  int      `yaml:"TIMEOUT_SECONDS"`
	Proxy           Proxy    `yaml:"PROXY"`
	Database        Database `yaml:"DATABASE"`
	ResetOnStart    bool     `yaml:"RESET_ON_START"` // 启动时清空已保存的快照
	LogLevel        string   `yaml:"LOG_LEVEL"`
	LogFormat       string   `yaml:"LOG_FORMAT"` // text|json|pretty
	LogLocale       string   `yaml:"LOG_LOCALE"` // zh-CN|en
	LogColor        string   `yaml:"LOG_COLOR"`  // auto|always|never
}

type Proxy struct {
	HTTP  string `yaml:"http"`
	HTTPS string `yaml:"https"`
}

// Database 可选：DSN 为空时不保存最新报表快照。
type Database struct {
	Type string `yaml:"type"` // sqlite (default)
	DSN  string `yaml:"dsn"`
}

// Default 返回未读取配置文件时使用的配置（仍需 Validate）。
func Default() *Config {
	return &Config{}
}

func Load(path string) (*Config, error) {
	// Load 从文件读取 YAML 并反序列化为 Config；校验留给调用方在合并命令行参数后执行。
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("unmarshal config %s: %w", path, err)
	}
	return &c, nil
}

// LoadOptional 读取配置文件；仅当路径为默认值（explicit=false）且文件不存在时回退到 Default()。
// 显式指定的配置文件缺失视为错误。
func LoadOptional(path string, explicit bool) (*Config, error) {
	c, err := Load(path)
	if err == nil {
		return c, nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return nil, err
}

// Overrides 为命令行传入的值，非空时覆盖配置文件。
type Overrides struct {
	APIKey          string
	ClanTag         string
	LogoPath        string
	FaviconPath     string
	DescriptionPath string
	OutputPath      string
}

// Apply 合并命令行参数与环境变量（CR_API_KEY 仅在密钥为空时生效）。
func (c *Config) Apply(o Overrides) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.APIKey, o.APIKey)
	set(&c.ClanTag, o.ClanTag)
	set(&c.LogoPath, o.LogoPath)
	set(&c.FaviconPath, o.FaviconPath)
	set(&c.DescriptionPath, o.DescriptionPath)
	set(&c.OutputPath, o.OutputPath)
	if c.APIKey == "" {
		c.APIKey = os.Getenv("CR_API_KEY")
	}
}

func (c *Config) Validate() error {
	// Validate 负责合法性检查与默认值设置，避免在业务层分散判空逻辑。
	c.ClanTag = strings.TrimSpace(c.ClanTag)
	if c.APIKey == "" {
		return errors.New("API_KEY is required (or set CR_API_KEY)")
	}
	if c.ClanTag == "" {
		return errors.New("CLAN_TAG is required")
	}
	if !strings.HasPrefix(c.ClanTag, "#") {
		return fmt.Errorf("CLAN_TAG must start with '#': %s", c.ClanTag)
	}
	if c.OutputPath == "" {
		return errors.New("OUTPUT_PATH is required")
	}
	if c.TimeoutSeconds < 0 {
		return errors.New("TIMEOUT_SECONDS must be >= 0")
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 25
	}
	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Database.Type != "sqlite" {
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}
	if c.LogFormat == "" {
		c.LogFormat = "pretty"
	}
	if c.LogLocale == "" {
		c.LogLocale = "zh-CN"
	}
	if c.LogColor == "" {
		c.LogColor = "auto"
	}
	return nil
}
