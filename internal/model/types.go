// 包 model 定义 API 原始数据（部落/成员/部落战）与渲染用的报表结构。
package model

import "time"

// Status 为单场部落战的参与度分类。
type Status string

const (
	StatusNA   Status = "na"
	StatusBad  Status = "bad"
	StatusOK   Status = "ok"
	StatusGood Status = "good"
)

// 成员角色（API 原始值）。
const (
	RoleMember   = "member"
	RoleElder    = "elder"
	RoleCoLeader = "coLeader"
	RoleLeader   = "leader"
)

// Location 为部落所在地区。
type Location struct {
	Name        string `json:"name"`
	IsCountry   bool   `json:"isCountry"`
	CountryCode string `json:"countryCode,omitempty"`
}

// Arena 为成员当前竞技场。
type Arena struct {
	Name string `json:"name"`
}

// Clan 为 /clans/{tag} 的响应，拉取后只读。
type Clan struct {
	Tag              string   `json:"tag"`
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	Type             string   `json:"type"`
	BadgeID          int      `json:"badgeId"`
	ClanScore        int      `json:"clanScore"`
	ClanWarTrophies  int      `json:"clanWarTrophies"`
	Location         Location `json:"location"`
	RequiredTrophies int      `json:"requiredTrophies"`
	DonationsPerWeek int      `json:"donationsPerWeek"`
	ClanChestLevel   int      `json:"clanChestLevel"`
	Members          int      `json:"members"`
	MemberList       []Member `json:"memberList"`
}

// Member 为部落成员的原始记录。
type Member struct {
	Tag               string `json:"tag"`
	Name              string `json:"name"`
	ExpLevel          int    `json:"expLevel"`
	Trophies          int    `json:"trophies"`
	Arena             Arena  `json:"arena"`
	Role              string `json:"role"`
	ClanRank          int    `json:"clanRank"`
	PreviousClanRank  int    `json:"previousClanRank"`
	Donations         int    `json:"donations"`
	DonationsReceived int    `json:"donationsReceived"`
}

// War 为战争日志中的一场部落战（API 按新到旧返回）。
type War struct {
	SeasonID     int           `json:"seasonId"`
	CreatedDate  string        `json:"createdDate"`
	Participants []Participant `json:"participants"`
}

// Participant 为某成员在一场部落战中的战绩。
type Participant struct {
	Tag                        string `json:"tag"`
	Name                       string `json:"name"`
	CardsEarned                int    `json:"cardsEarned"`
	BattlesPlayed              int    `json:"battlesPlayed"`
	Wins                       int    `json:"wins"`
	CollectionDayBattlesPlayed int    `json:"collectionDayBattlesPlayed"`
}

// Participation 为成员在单场部落战中的参与记录；未参战时仅有 Status=na。
type Participation struct {
	Status                     Status `json:"status"`
	BattlesPlayed              int    `json:"battlesPlayed,omitempty"`
	CollectionDayBattlesPlayed int    `json:"collectionDayBattlesPlayed,omitempty"`
	Wins                       int    `json:"wins,omitempty"`
	CardsEarned                int    `json:"cardsEarned,omitempty"`
}

// MemberRow 是在原始 Member 之上构造的新值，不修改 API 快照。
// Role 为展示值（coLeader 显示为 co-leader）。
type MemberRow struct {
	Member
	Warlog     []Participation `json:"warlog"`
	Danger     bool            `json:"danger"`
	Leadership bool            `json:"leadership"`
}

// Report 为渲染所需的全部数据。
type Report struct {
	Tag              string      `json:"tag"`
	Name             string      `json:"name"`
	Description      string      `json:"description"`
	RequiredTrophies int         `json:"requiredTrophies"`
	Clan             Clan        `json:"clan"`
	Members          []MemberRow `json:"members"`
	WarDates         []string    `json:"warDates"`
	WarCount         int         `json:"warCount"`
	GeneratedAt      time.Time   `json:"generatedAt"`
}

// Snapshot 为已保存报表的部落概要，用于与本次运行对比。
type Snapshot struct {
	Tag         string
	Name        string
	Description string
	Members     int
	Wars        int
	UpdatedAt   time.Time
}
