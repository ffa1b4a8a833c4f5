package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"go-crtools/internal/model"
	"go-crtools/internal/render"
)

type fakeSource struct {
	clanJSON string
	warsJSON string
	err      error
}

func (f fakeSource) Clan(_ context.Context, tag string) (model.Clan, json.RawMessage, error) {
	if f.err != nil {
		return model.Clan{}, nil, f.err
	}
	var c model.Clan
	if err := json.Unmarshal([]byte(f.clanJSON), &c); err != nil {
		return model.Clan{}, nil, err
	}
	return c, json.RawMessage(f.clanJSON), nil
}

func (f fakeSource) WarLog(_ context.Context, tag string) ([]model.War, json.RawMessage, error) {
	var w []model.War
	if err := json.Unmarshal([]byte(f.warsJSON), &w); err != nil {
		return nil, nil, err
	}
	return w, json.RawMessage(f.warsJSON), nil
}

type failingRenderer struct{}

func (failingRenderer) Render(model.Report) (string, error) { return "", errors.New("template exploded") }

// memRecorder 在内存中保存最新报表，行为与 store.SQLite 一致（只保留一份）。
type memRecorder struct{ saved []model.Report }

func (m *memRecorder) LatestClan(context.Context) (model.Snapshot, bool, error) {
	if len(m.saved) == 0 {
		return model.Snapshot{}, false, nil
	}
	last := m.saved[len(m.saved)-1]
	return model.Snapshot{Tag: last.Tag, Name: last.Name, Description: last.Description,
		Members: len(last.Members), Wars: last.WarCount, UpdatedAt: last.GeneratedAt}, true, nil
}

func (m *memRecorder) ListMembers(context.Context) ([]model.MemberRow, error) {
	if len(m.saved) == 0 {
		return nil, nil
	}
	return m.saved[len(m.saved)-1].Members, nil
}

func (m *memRecorder) SaveReport(_ context.Context, rep model.Report) error {
	m.saved = append(m.saved, rep)
	return nil
}

const clanJSON = `{"tag":"#JY8YVV","name":"Traas","description":"from api","requiredTrophies":4000,"members":2,
"memberList":[{"tag":"#A","name":"alice","role":"coLeader","donations":10},{"tag":"#B","name":"bob","role":"member","donations":0}]}`

const warsJSON = `[
{"createdDate":"20240129T100000.000Z","participants":[{"tag":"#A","battlesPlayed":1,"collectionDayBattlesPlayed":3}]},
{"createdDate":"20240122T100000.000Z","participants":[{"tag":"#A","battlesPlayed":1,"collectionDayBattlesPlayed":3}]},
{"createdDate":"20240115T100000.000Z","participants":[{"tag":"#A","battlesPlayed":1,"collectionDayBattlesPlayed":3}]}]`

type env struct {
	tmp string
	out string
}

func newEnv(t *testing.T) env {
	t.Helper()
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	root := t.TempDir()
	e := env{tmp: filepath.Join(root, "tmp"), out: filepath.Join(root, "site")}
	if err := os.Mkdir(e.tmp, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	return e
}

func (e env) assertNoTempLeft(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(e.tmp)
	if err != nil {
		t.Fatalf("read tmp: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("temp dir not cleaned: %v", entries[0].Name())
	}
}

func newRenderer(t *testing.T) *render.Renderer {
	t.Helper()
	r, err := render.New("test")
	if err != nil {
		t.Fatalf("renderer: %v", err)
	}
	return r
}

func TestRun_PublishesFullTree(t *testing.T) {
	e := newEnv(t)
	// 旧输出中的残留文件应被整体替换
	_ = os.MkdirAll(e.out, 0o755)
	_ = os.WriteFile(filepath.Join(e.out, "stale.txt"), []byte("old"), 0o644)

	rec := &memRecorder{}
	src := fakeSource{clanJSON: clanJSON, warsJSON: warsJSON}
	run := New(Options{ClanTag: "#JY8YVV", OutputPath: e.out, TempDir: e.tmp, Version: "test"}, src, newRenderer(t), rec)
	if err := run.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, f := range []string{IndexFile, LogoFile, FaviconFile, "static/crtools.css", "log/clan.json", "log/warlog.json", "log/run.json"} {
		if _, err := os.Stat(filepath.Join(e.out, f)); err != nil {
			t.Fatalf("missing %s: %v", f, err)
		}
	}
	if _, err := os.Stat(filepath.Join(e.out, "stale.txt")); err == nil {
		t.Fatalf("stale file survived publish")
	}
	e.assertNoTempLeft(t)

	b, _ := os.ReadFile(filepath.Join(e.out, "log", "clan.json"))
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("clan log: %v", err)
	}
	ml := raw["memberList"].([]any)
	if ml[0].(map[string]any)["role"] != "coLeader" {
		t.Fatalf("audit log must hold the raw role, got %v", ml[0])
	}
	if _, ok := ml[0].(map[string]any)["warlog"]; ok {
		t.Fatalf("audit log contains derived fields")
	}

	index, _ := os.ReadFile(filepath.Join(e.out, IndexFile))
	if !strings.Contains(string(index), "from api") {
		t.Fatalf("api description missing from page")
	}
	if len(rec.saved) != 1 || len(rec.saved[0].Members) != 2 {
		t.Fatalf("recorder not called with report: %+v", rec.saved)
	}
	a, bob := rec.saved[0].Members[0], rec.saved[0].Members[1]
	if a.Danger || !bob.Danger || len(bob.Warlog) != 3 {
		t.Fatalf("danger flags a=%v b=%v", a.Danger, bob.Danger)
	}
}

func TestRun_RenderFailureLeavesOutputUntouched(t *testing.T) {
	e := newEnv(t)
	_ = os.MkdirAll(e.out, 0o755)
	_ = os.WriteFile(filepath.Join(e.out, IndexFile), []byte("previous"), 0o644)

	src := fakeSource{clanJSON: clanJSON, warsJSON: warsJSON}
	run := New(Options{ClanTag: "#JY8YVV", OutputPath: e.out, TempDir: e.tmp}, src, failingRenderer{}, nil)
	err := run.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "template exploded") {
		t.Fatalf("expect render error, got %v", err)
	}
	b, _ := os.ReadFile(filepath.Join(e.out, IndexFile))
	if string(b) != "previous" {
		t.Fatalf("output modified: %q", b)
	}
	if _, err := os.Stat(filepath.Join(e.out, LogDir)); err == nil {
		t.Fatalf("partial publish: log dir present")
	}
	e.assertNoTempLeft(t)
}

func TestRun_FetchFailureCleansUp(t *testing.T) {
	e := newEnv(t)
	src := fakeSource{err: errors.New("connection refused")}
	run := New(Options{ClanTag: "#JY8YVV", OutputPath: e.out, TempDir: e.tmp}, src, newRenderer(t), nil)
	if err := run.Run(context.Background()); err == nil {
		t.Fatalf("expect error")
	}
	if _, err := os.Stat(e.out); err == nil {
		t.Fatalf("output created on failure")
	}
	e.assertNoTempLeft(t)
}

func TestRun_MissingLogoFails(t *testing.T) {
	e := newEnv(t)
	src := fakeSource{clanJSON: clanJSON, warsJSON: warsJSON}
	run := New(Options{ClanTag: "#JY8YVV", OutputPath: e.out, TempDir: e.tmp, LogoPath: filepath.Join(e.tmp, "nope.png")}, src, newRenderer(t), nil)
	if err := run.Run(context.Background()); err == nil {
		t.Fatalf("expect error for missing logo")
	}
	e.assertNoTempLeft(t)
}

func TestRun_UserLogoAndFavicon(t *testing.T) {
	e := newEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)
	_ = os.WriteFile(filepath.Join(home, "logo.png"), []byte("my-logo"), 0o644)
	_ = os.WriteFile(filepath.Join(home, "fav.ico"), []byte("my-fav"), 0o644)
	src := fakeSource{clanJSON: clanJSON, warsJSON: warsJSON}
	run := New(Options{ClanTag: "#JY8YVV", OutputPath: e.out, TempDir: e.tmp, LogoPath: "~/logo.png", FaviconPath: "~/fav.ico"}, src, newRenderer(t), nil)
	if err := run.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if b, _ := os.ReadFile(filepath.Join(e.out, LogoFile)); string(b) != "my-logo" {
		t.Fatalf("logo = %q", b)
	}
	if b, _ := os.ReadFile(filepath.Join(e.out, FaviconFile)); string(b) != "my-fav" {
		t.Fatalf("favicon = %q", b)
	}
}

func TestResolveDescription(t *testing.T) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	dir := t.TempDir()
	f := filepath.Join(dir, "desc.txt")
	_ = os.WriteFile(f, []byte("Welcome!\nWar every week."), 0o644)

	if got, _ := ResolveDescription("api", ""); got != "api" {
		t.Fatalf("no path: %q", got)
	}
	if got, _ := ResolveDescription("api", f); got != "Welcome!\nWar every week." {
		t.Fatalf("file: %q", got)
	}
	missing := filepath.Join(dir, "missing.txt")
	got, err := ResolveDescription("api", missing)
	if err != nil {
		t.Fatalf("missing file must not be fatal: %v", err)
	}
	if got != "ERROR: File '"+missing+"' does not exist." {
		t.Fatalf("missing: %q", got)
	}
}

func TestResolveDescription_UnexpandablePathIsSoft(t *testing.T) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Setenv("HOME", "")
	got, err := ResolveDescription("api", "~/desc.txt")
	if err != nil {
		t.Fatalf("unexpandable path must not be fatal: %v", err)
	}
	if got != "ERROR: File '~/desc.txt' does not exist." {
		t.Fatalf("got %q", got)
	}
}

func TestRun_RecordsRunStartTime(t *testing.T) {
	e := newEnv(t)
	started := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)
	rec := &memRecorder{}
	src := fakeSource{clanJSON: clanJSON, warsJSON: warsJSON}
	run := New(Options{ClanTag: "#JY8YVV", OutputPath: e.out, TempDir: e.tmp}, src, newRenderer(t), rec).
		WithClock(func() time.Time { return started })
	if err := run.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(rec.saved) != 1 || !rec.saved[0].GeneratedAt.Equal(started) {
		t.Fatalf("report generated_at = %+v, want %v", rec.saved, started)
	}
	b, _ := os.ReadFile(filepath.Join(e.out, LogDir, RunLog))
	var info runInfo
	if err := json.Unmarshal(b, &info); err != nil {
		t.Fatalf("run log: %v", err)
	}
	if !info.StartedAt.Equal(started) {
		t.Fatalf("run.json started_at = %v", info.StartedAt)
	}
}

func TestRun_LogsRosterChangesAgainstPreviousSnapshot(t *testing.T) {
	e := newEnv(t)
	var buf bytes.Buffer
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	prev := model.Report{Tag: "#JY8YVV", Name: "Traas", WarCount: 5, Members: []model.MemberRow{
		{Member: model.Member{Tag: "#A"}}, {Member: model.Member{Tag: "#Z"}},
	}}
	rec := &memRecorder{saved: []model.Report{prev}}
	src := fakeSource{clanJSON: clanJSON, warsJSON: warsJSON}
	run := New(Options{ClanTag: "#JY8YVV", OutputPath: e.out, TempDir: e.tmp}, src, newRenderer(t), rec)
	if err := run.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(rec.saved) != 2 {
		t.Fatalf("report not saved after comparison: %d", len(rec.saved))
	}
	logs := buf.String()
	for _, want := range []string{`"msg":"previous snapshot"`, `"members":2`, `"wars":5`, `"now_wars":3`,
		`"msg":"roster changes"`, `"joined":"#B"`, `"left":"#Z"`} {
		if !strings.Contains(logs, want) {
			t.Fatalf("missing %s in logs:\n%s", want, logs)
		}
	}
}

func TestRosterChanges(t *testing.T) {
	rows := func(tags ...string) []model.MemberRow {
		var out []model.MemberRow
		for _, tag := range tags {
			out = append(out, model.MemberRow{Member: model.Member{Tag: tag}})
		}
		return out
	}
	joined, left := RosterChanges(rows("#A", "#B", "#C"), rows("#D", "#A", "#E", "#C"))
	if diff := cmp.Diff([]string{"#D", "#E"}, joined); diff != "" {
		t.Fatalf("joined (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"#B"}, left); diff != "" {
		t.Fatalf("left (-want +got):\n%s", diff)
	}
	joined, left = RosterChanges(nil, rows("#A"))
	if len(joined) != 1 || left != nil {
		t.Fatalf("empty previous: joined=%v left=%v", joined, left)
	}
}
