// 包 report 将部落、成员与部落战数据拼装为渲染用的 Report，不做任何 I/O。
package report

import (
	"fmt"
	"strings"
	"time"

	"go-crtools/internal/analyze"
	"go-crtools/internal/model"
)

// createdDate 形如 20240115T103000.000Z，"." 之后的部分会被丢弃。
const createdDateLayout = "20060102T150405"

// BuildMemberRows 为每个成员构造新的 MemberRow，保持 API 返回的顺序。
func BuildMemberRows(clan model.Clan, wars []model.War) []model.MemberRow {
	rows := make([]model.MemberRow, 0, len(clan.MemberList))
	for _, m := range clan.MemberList {
		warlog := analyze.Classify(m.Tag, wars)
		row := model.MemberRow{
			Member:     m,
			Warlog:     warlog,
			Danger:     analyze.IsDanger(m, warlog),
			Leadership: m.Role == model.RoleLeader || m.Role == model.RoleCoLeader,
		}
		row.Role = DisplayRole(m.Role)
		rows = append(rows, row)
	}
	return rows
}

// DisplayRole 返回角色的展示名。
func DisplayRole(role string) string {
	if role == model.RoleCoLeader {
		return "co-leader"
	}
	return role
}

// WarlogDates 为每场部落战生成 MM-DD 标签，顺序与输入一致。
func WarlogDates(wars []model.War) ([]string, error) {
	out := make([]string, 0, len(wars))
	for i, w := range wars {
		label, err := DateLabel(w.CreatedDate)
		if err != nil {
			return nil, fmt.Errorf("war %d: %w", i, err)
		}
		out = append(out, label)
	}
	return out, nil
}

// DateLabel 解析单个 createdDate 并格式化为 MM-DD。
func DateLabel(created string) (string, error) {
	s, _, _ := strings.Cut(created, ".")
	t, err := time.Parse(createdDateLayout, s)
	if err != nil {
		return "", fmt.Errorf("parse created date %q: %w", created, err)
	}
	return t.Format("01-02"), nil
}

// Assemble 拼装最终的 Report。
func Assemble(clan model.Clan, rows []model.MemberRow, description string, wars []model.War, dates []string) model.Report {
	return model.Report{
		Tag:              clan.Tag,
		Name:             clan.Name,
		Description:      description,
		RequiredTrophies: clan.RequiredTrophies,
		Clan:             clan,
		Members:          rows,
		WarDates:         dates,
		WarCount:         len(wars),
	}
}
