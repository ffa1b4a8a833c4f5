// 包 render 持有已解析的 HTML 模板与版本号，将 Report 渲染为仪表盘页面。
// 静态资源（样式、默认 logo 与 favicon）随二进制嵌入，见 Static。
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"time"

	"go-crtools/internal/analyze"
	"go-crtools/internal/model"
)

//go:embed templates/*.html.tmpl
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Static 为嵌入的静态资源，根目录下包含 static/。
var Static fs.FS = staticFS

// 嵌入资源中的固定路径。
const (
	StaticDir      = "static"
	DefaultLogo    = "static/crtools-logo.png"
	DefaultFavicon = "static/crtools-favicon.ico"
)

const (
	statsTemplate   = "clan-stats-table.html.tmpl"
	membersTemplate = "member-table.html.tmpl"
	pageTemplate    = "page.html.tmpl"
)

// Renderer 渲染仪表盘；由调用方构造并显式传递，不使用包级状态。
type Renderer struct {
	tmpl    *template.Template
	version string
	now     func() time.Time
}

// New 解析嵌入的模板。
func New(version string) (*Renderer, error) {
	t, err := template.New("crtools").Funcs(template.FuncMap{
		"tally": analyze.Tally,
	}).ParseFS(templateFS, "templates/*.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{tmpl: t, version: version, now: time.Now}, nil
}

// WithClock 替换时间来源，便于测试固定更新时间。
func (r *Renderer) WithClock(now func() time.Time) *Renderer {
	cp := *r
	cp.now = now
	return &cp
}

type memberTable struct {
	Members     []model.MemberRow
	ClanName    string
	MinTrophies int
	WarDates    []string
}

type page struct {
	Version         string
	PageTitle       string
	UpdateDate      string
	Content         template.HTML
	ClanName        string
	ClanID          string
	ClanDescription string
	ClanStats       template.HTML
}

// Render 依次渲染统计表（直接使用原始部落数据）、成员表与整页。
func (r *Renderer) Render(rep model.Report) (string, error) {
	stats, err := r.execute(statsTemplate, rep.Clan)
	if err != nil {
		return "", err
	}
	members, err := r.execute(membersTemplate, memberTable{
		Members:     rep.Members,
		ClanName:    rep.Name,
		MinTrophies: rep.RequiredTrophies,
		WarDates:    rep.WarDates,
	})
	if err != nil {
		return "", err
	}
	return r.execute(pageTemplate, page{
		Version:         r.version,
		PageTitle:       rep.Name + " Clan Dashboard",
		UpdateDate:      r.now().Format("Mon Jan _2 15:04:05 2006"),
		Content:         template.HTML(members),
		ClanName:        rep.Name,
		ClanID:          rep.Tag,
		ClanDescription: rep.Description,
		ClanStats:       template.HTML(stats),
	})
}

func (r *Renderer) execute(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
