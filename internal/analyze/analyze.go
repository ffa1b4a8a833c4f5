// 包 analyze 计算成员的部落战参与度与“危险”标记，均为纯函数。
package analyze

import "go-crtools/internal/model"

// 收集日打满的场次。
const fullCollectionDay = 3

// Counts 为参与记录按状态计数（na 不计入）。
type Counts struct {
	Good int
	OK   int
	Bad  int
}

// Classify 按战争日志顺序返回 memberTag 的逐场参与记录，长度恒等于 len(wars)。
// 判定顺序：收集日 0 场→na；决战日 0 场→bad；收集日不足 3 场→ok；否则 good。
func Classify(memberTag string, wars []model.War) []model.Participation {
	out := make([]model.Participation, 0, len(wars))
	for _, w := range wars {
		p := model.Participation{Status: model.StatusNA}
		for _, pt := range w.Participants {
			if pt.Tag != memberTag {
				continue
			}
			p = model.Participation{
				Status:                     status(pt),
				BattlesPlayed:              pt.BattlesPlayed,
				CollectionDayBattlesPlayed: pt.CollectionDayBattlesPlayed,
				Wins:                       pt.Wins,
				CardsEarned:                pt.CardsEarned,
			}
			break
		}
		out = append(out, p)
	}
	return out
}

func status(pt model.Participant) model.Status {
	switch {
	case pt.CollectionDayBattlesPlayed == 0:
		return model.StatusNA
	case pt.BattlesPlayed == 0:
		return model.StatusBad
	case pt.CollectionDayBattlesPlayed < fullCollectionDay:
		return model.StatusOK
	default:
		return model.StatusGood
	}
}

// Tally 统计 good/ok/bad 的场次。
func Tally(list []model.Participation) Counts {
	var c Counts
	for _, p := range list {
		switch p.Status {
		case model.StatusGood:
			c.Good++
		case model.StatusOK:
			c.OK++
		case model.StatusBad:
			c.Bad++
		}
	}
	return c
}

// IsDanger 判断成员是否有被移出的风险：
// bad 多于 good，或一场 good 都没有且捐卡为 0。
func IsDanger(m model.Member, list []model.Participation) bool {
	c := Tally(list)
	if c.Bad > c.Good {
		return true
	}
	return c.Good == 0 && m.Donations == 0
}
