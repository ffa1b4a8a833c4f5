// 包 publish 负责主流程编排：
// - 在私有临时目录中暂存全部产物（静态资源/logo/favicon/日志/index.html）
// - 全部就绪后才替换输出目录
// - 无论成功与否都删除临时目录
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"go-crtools/internal/export"
	"go-crtools/internal/logx"
	"go-crtools/internal/model"
	"go-crtools/internal/render"
	"go-crtools/internal/report"
)

// 输出目录中的固定文件名。
const (
	LogDir      = "log"
	IndexFile   = "index.html"
	LogoFile    = "clan_logo.png"
	FaviconFile = "favicon.ico"
	ClanLog     = "clan.json"
	WarLogLog   = "warlog.json"
	RunLog      = "run.json"
)

// Source 为远端数据来源（见 fetch.Client）。
type Source interface {
	Clan(ctx context.Context, tag string) (model.Clan, json.RawMessage, error)
	WarLog(ctx context.Context, tag string) ([]model.War, json.RawMessage, error)
}

// Renderer 将 Report 渲染为 HTML（见 render.Renderer）。
type Renderer interface {
	Render(rep model.Report) (string, error)
}

// Recorder 保存最新报表（见 store.SQLite），可为空。
// 保存前读取上一份快照，用于在日志中对比成员变动。
type Recorder interface {
	LatestClan(ctx context.Context) (model.Snapshot, bool, error)
	ListMembers(ctx context.Context) ([]model.MemberRow, error)
	SaveReport(ctx context.Context, rep model.Report) error
}

// Options 为单次运行的参数；路径均支持 ~ 前缀。
type Options struct {
	ClanTag         string
	LogoPath        string
	FaviconPath     string
	DescriptionPath string
	OutputPath      string
	TempDir         string // 空表示系统临时目录
	Version         string
}

// Runner 发布执行器，持有数据来源/渲染器/可选存储。
type Runner struct {
	opts   Options
	src    Source
	render Renderer
	rec    Recorder
	now    func() time.Time
}

// New 创建 Runner；rec 可为 nil。
func New(opts Options, src Source, r Renderer, rec Recorder) *Runner {
	return &Runner{opts: opts, src: src, render: r, rec: rec, now: time.Now}
}

// WithClock 替换时间来源（运行开始时间写入 run.json 与报表）。
func (r *Runner) WithClock(now func() time.Time) *Runner {
	cp := *r
	cp.now = now
	return &cp
}

type runInfo struct {
	RunID     string    `json:"run_id"`
	Version   string    `json:"version"`
	Clan      string    `json:"clan"`
	StartedAt time.Time `json:"started_at"`
}

// Run 执行一次完整构建：暂存→资源→拉取并记录日志→描述→渲染→发布→清理。
// 任一步失败都不会触碰输出目录（输出目录只在最后一步被替换）。
func (r *Runner) Run(ctx context.Context) error {
	info := runInfo{RunID: uuid.NewString(), Version: r.opts.Version, Clan: r.opts.ClanTag, StartedAt: r.now()}
	log := logx.With("run_id", info.RunID, "clan", r.opts.ClanTag)

	// 1) 暂存目录
	workdir, err := os.MkdirTemp(r.opts.TempDir, "crtools-")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(workdir); err != nil {
			log.Warn("remove temp dir failed", "dir", workdir, "error", err)
			return
		}
		log.Debug("temp dir removed", "dir", workdir)
	}()
	// MkdirTemp 为 0700；首次发布时输出目录沿用此权限，需可被 Web 服务读取
	if err := os.Chmod(workdir, 0o755); err != nil {
		return fmt.Errorf("chmod temp dir: %w", err)
	}
	logPath := filepath.Join(workdir, LogDir)
	if err := os.Mkdir(logPath, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	log.Info("staging", "dir", workdir)

	// 2) 静态资源与 logo/favicon
	if err := populateAssets(workdir, r.opts.LogoPath, r.opts.FaviconPath); err != nil {
		return err
	}
	if err := export.WriteJSON(filepath.Join(logPath, RunLog), info); err != nil {
		return err
	}

	// 3) 拉取数据，先原样写入审计日志再做任何转换
	clan, rawClan, err := r.src.Clan(ctx, r.opts.ClanTag)
	if err != nil {
		return fmt.Errorf("fetch clan: %w", err)
	}
	if err := export.WriteJSON(filepath.Join(logPath, ClanLog), rawClan); err != nil {
		return err
	}
	wars, rawWars, err := r.src.WarLog(ctx, r.opts.ClanTag)
	if err != nil {
		return fmt.Errorf("fetch warlog: %w", err)
	}
	if err := export.WriteJSON(filepath.Join(logPath, WarLogLog), rawWars); err != nil {
		return err
	}
	log.Info("fetched", "members", len(clan.MemberList), "wars", len(wars))

	// 4) 描述文本
	description, err := ResolveDescription(clan.Description, r.opts.DescriptionPath)
	if err != nil {
		return err
	}

	// 5) 拼装与渲染
	rows := report.BuildMemberRows(clan, wars)
	dates, err := report.WarlogDates(wars)
	if err != nil {
		return fmt.Errorf("war dates: %w", err)
	}
	rep := report.Assemble(clan, rows, description, wars, dates)
	rep.GeneratedAt = info.StartedAt
	html, err := r.render.Render(rep)
	if err != nil {
		return fmt.Errorf("render dashboard: %w", err)
	}
	if err := export.WriteText(filepath.Join(workdir, IndexFile), html); err != nil {
		return err
	}
	logSummary(log, html)

	// 6) 发布
	out, err := Publish(workdir, r.opts.OutputPath, log)
	if err != nil {
		return err
	}
	log.Info("published", "output", out)

	if r.rec != nil {
		r.record(ctx, log, rep)
	}
	return nil
}

// record 对比上一份快照后保存本次报表；失败只记警告，不影响已完成的发布。
func (r *Runner) record(ctx context.Context, log *slog.Logger, rep model.Report) {
	prev, ok, err := r.rec.LatestClan(ctx)
	if err != nil {
		log.Warn("read previous snapshot failed", "error", err)
	} else if ok {
		log.Info("previous snapshot", "updated_at", prev.UpdatedAt.Format(time.RFC3339),
			"members", prev.Members, "wars", prev.Wars,
			"now_members", len(rep.Members), "now_wars", rep.WarCount)
		if members, err := r.rec.ListMembers(ctx); err != nil {
			log.Warn("read previous members failed", "error", err)
		} else {
			joined, left := RosterChanges(members, rep.Members)
			log.Info("roster changes", "joined", strings.Join(joined, ","), "left", strings.Join(left, ","))
		}
	}
	if err := r.rec.SaveReport(ctx, rep); err != nil {
		log.Warn("save report snapshot failed", "error", err)
	}
}

// RosterChanges 返回相对上一份快照新加入与已离开的成员 tag（各自保持原顺序）。
func RosterChanges(prev, cur []model.MemberRow) (joined, left []string) {
	before := make(map[string]bool, len(prev))
	for _, m := range prev {
		before[m.Tag] = true
	}
	now := make(map[string]bool, len(cur))
	for _, m := range cur {
		now[m.Tag] = true
		if !before[m.Tag] {
			joined = append(joined, m.Tag)
		}
	}
	for _, m := range prev {
		if !now[m.Tag] {
			left = append(left, m.Tag)
		}
	}
	return joined, left
}

// populateAssets 复制嵌入的 static/，以及 logo 与 favicon（未指定时使用内置默认）。
func populateAssets(workdir, logoPath, faviconPath string) error {
	if err := export.CopyTree(render.Static, render.StaticDir, filepath.Join(workdir, render.StaticDir)); err != nil {
		return fmt.Errorf("copy static assets: %w", err)
	}
	if err := copyAsset(logoPath, render.DefaultLogo, filepath.Join(workdir, LogoFile)); err != nil {
		return fmt.Errorf("copy logo: %w", err)
	}
	if err := copyAsset(faviconPath, render.DefaultFavicon, filepath.Join(workdir, FaviconFile)); err != nil {
		return fmt.Errorf("copy favicon: %w", err)
	}
	return nil
}

func copyAsset(userPath, fallback, dst string) error {
	if userPath == "" {
		return export.CopyFSFile(render.Static, fallback, dst)
	}
	src, err := export.ExpandUser(userPath)
	if err != nil {
		return err
	}
	return export.CopyFile(src, dst)
}

// ResolveDescription 决定页面展示的部落描述：
// 未指定文件→API 描述；文件存在→文件全文；文件不存在→内联错误提示（不中断运行）。
func ResolveDescription(apiDescription, path string) (string, error) {
	if path == "" {
		return apiDescription, nil
	}
	p, err := export.ExpandUser(path)
	if err != nil {
		logx.Warnf("无法展开描述文件路径：%s 错误=%v", path, err)
		return missingDescription(path), nil
	}
	fi, err := os.Stat(p)
	if err != nil || !fi.Mode().IsRegular() {
		logx.Warnf("描述文件不存在：%s", p)
		return missingDescription(p), nil
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return "", fmt.Errorf("read description %s: %w", p, err)
	}
	return string(b), nil
}

func missingDescription(path string) string {
	return fmt.Sprintf("ERROR: File '%s' does not exist.", path)
}

// Publish 用 workdir 整体替换输出目录，返回展开后的输出路径。
// 输出目录已存在时先尽力沿用其权限与修改时间，再删除。
func Publish(workdir, output string, log *slog.Logger) (string, error) {
	out, err := export.ExpandUser(output)
	if err != nil {
		return "", err
	}
	_, err = os.Stat(out)
	switch {
	case err == nil:
		if err := export.CopyStat(out, workdir); err != nil {
			log.Warn("copy output metadata failed", "error", err)
		}
		if err := os.RemoveAll(out); err != nil {
			return "", fmt.Errorf("remove old output %s: %w", out, err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("stat output %s: %w", out, err)
	}
	if err := export.CopyTree(os.DirFS(workdir), ".", out); err != nil {
		return "", fmt.Errorf("copy to output %s: %w", out, err)
	}
	if err := export.CopyStat(workdir, out); err != nil {
		log.Warn("copy output metadata failed", "error", err)
	}
	return out, nil
}

func logSummary(log *slog.Logger, html string) {
	s, err := render.Summarize(html)
	if err != nil {
		log.Warn("inspect rendered page failed", "error", err)
		return
	}
	log.Info("rendered", "title", s.Title, "members", s.Members, "danger", s.Danger, "wars", s.Wars)
}
