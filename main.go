// 命令行入口：
// - 解析 flags 与可选的 settings.yaml（flags 优先）
// - 初始化日志、API 客户端、渲染器与可选的 SQLite 快照
// - 执行一次构建并发布仪表盘
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go-crtools/internal/config"
	"go-crtools/internal/fetch"
	"go-crtools/internal/logx"
	"go-crtools/internal/publish"
	"go-crtools/internal/render"
	"go-crtools/internal/store"
)

// version 在发布构建时通过 -ldflags "-X main.version=..." 注入。
var version = "dev"

func main() {
	var (
		configPath  = flag.String("config", "settings.yaml", "path to settings.yaml (optional)")
		apiKey      = flag.String("api-key", "", "Clash Royale API key (or CR_API_KEY)")
		clan        = flag.String("clan", "", "clan tag, e.g. #JY8YVV")
		logo        = flag.String("logo", "", "path to clan logo (default: bundled logo)")
		favicon     = flag.String("favicon", "", "path to favicon (default: bundled favicon)")
		description = flag.String("description", "", "path to a file overriding the clan description")
		output      = flag.String("output", "", "output directory for the dashboard")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()
	if *showVersion {
		fmt.Println(version)
		return
	}

	// 1) 配置：默认路径的文件可选；显式 -config 指定的文件必须存在
	explicit := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			explicit = true
		}
	})
	cfg, err := config.LoadOptional(*configPath, explicit)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	cfg.Apply(config.Overrides{
		APIKey:          *apiKey,
		ClanTag:         *clan,
		LogoPath:        *logo,
		FaviconPath:     *favicon,
		DescriptionPath: *description,
		OutputPath:      *output,
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("validate config: %v", err)
	}

	// 2) 日志
	logx.Init(cfg.LogLevel, cfg.LogFormat, cfg.LogLocale, cfg.LogColor)

	// 3) API 客户端与渲染器
	cl, err := fetch.New(fetch.Options{
		BaseURL:    cfg.APIBaseURL,
		APIKey:     cfg.APIKey,
		ProxyHTTP:  cfg.Proxy.HTTP,
		ProxyHTTPS: cfg.Proxy.HTTPS,
		Timeout:    time.Duration(cfg.TimeoutSeconds) * time.Second,
		UserAgent:  "go-crtools/" + version,
	})
	if err != nil {
		log.Fatalf("http client: %v", err)
	}
	rd, err := render.New(version)
	if err != nil {
		log.Fatalf("templates: %v", err)
	}

	// 4) 可选：保存最新报表到 SQLite
	ctx := context.Background()
	var rec publish.Recorder
	if cfg.Database.DSN != "" {
		st, err := store.OpenSQLite(cfg.Database.DSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer st.Close()
		if cfg.ResetOnStart {
			if err := st.Reset(ctx); err != nil {
				log.Fatalf("reset db: %v", err)
			}
			logx.Infof("已清空快照数据库：%s", cfg.Database.DSN)
		}
		rec = st
	}

	// 5) 构建并发布
	run := publish.New(publish.Options{
		ClanTag:         cfg.ClanTag,
		LogoPath:        cfg.LogoPath,
		FaviconPath:     cfg.FaviconPath,
		DescriptionPath: cfg.DescriptionPath,
		OutputPath:      cfg.OutputPath,
		TempDir:         cfg.TempDir,
		Version:         version,
	}, cl, rd, rec)
	logx.Infof("开始构建：部落=%s 输出=%s", cfg.ClanTag, cfg.OutputPath)
	if err := run.Run(ctx); err != nil {
		logx.Errorf("运行失败：%v", err)
		os.Exit(1)
	}
	logx.Infof("已发布仪表盘：%s", cfg.OutputPath)
}
