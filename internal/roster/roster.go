package roster

import (
	"fmt"

	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/domain"
)

// Roster 是一次分组任务中只读的名单视图，players 的顺序即基因的顺序
type Roster struct {
	numTeams   int
	players    []domain.Player
	fixed      map[string]int
	fixedIndex []int // fixedIndex[i] 为第 i 个选手被固定的队伍，未固定时为 -1
}

func New(numTeams int, fixedAssignments map[string]int, players []domain.Player) (*Roster, error) {
	if len(players) == 0 {
		return nil, &domain.MalformedRosterError{Reason: "名单中没有任何选手"}
	}
	if numTeams <= 0 {
		return nil, &domain.InfeasibleConfigurationError{Reason: fmt.Sprintf("队伍数量必须大于 0，当前为 %d", numTeams)}
	}

	r := &Roster{
		numTeams:   numTeams,
		players:    make([]domain.Player, len(players)),
		fixed:      make(map[string]int, len(fixedAssignments)),
		fixedIndex: make([]int, len(players)),
	}
	copy(r.players, players)

	positions := make(map[string]int, len(players))
	for i, p := range r.players {
		if p.Name == "" {
			return nil, &domain.MalformedRosterError{Reason: fmt.Sprintf("第 %d 名选手缺少 name", i+1)}
		}
		if _, exists := positions[p.Name]; exists {
			return nil, &domain.MalformedRosterError{Reason: fmt.Sprintf("选手 %s 重复出现", p.Name)}
		}
		positions[p.Name] = i
		r.fixedIndex[i] = -1
	}

	for name, team := range fixedAssignments {
		i, exists := positions[name]
		if !exists {
			return nil, &domain.MalformedRosterError{Reason: fmt.Sprintf("固定分配中的选手 %s 不在名单中", name)}
		}
		if team < 0 || team >= numTeams {
			return nil, &domain.MalformedRosterError{Reason: fmt.Sprintf("选手 %s 的固定队伍 %d 超出范围 [0, %d)", name, team, numTeams)}
		}
		r.fixed[name] = team
		r.fixedIndex[i] = team
	}

	if err := r.checkFeasible(); err != nil {
		return nil, err
	}

	return r, nil
}

// checkFeasible 提前拒绝那些任何分配都无法通过最少人数检查的配置
func (r *Roster) checkFeasible() error {
	if r.numTeams > len(r.players) {
		return &domain.InfeasibleConfigurationError{
			Reason: fmt.Sprintf("队伍数量 %d 超过了选手数量 %d", r.numTeams, len(r.players)),
		}
	}

	minPerTeam := len(r.players) / r.numTeams
	fixedCount := make([]int, r.numTeams)
	for _, team := range r.fixed {
		fixedCount[team]++
	}

	// 未固定的选手需要把每个队伍补足到 minPerTeam
	needed := 0
	for _, cnt := range fixedCount {
		needed += max(0, minPerTeam-cnt)
	}
	free := len(r.players) - len(r.fixed)
	if needed > free {
		return &domain.InfeasibleConfigurationError{
			Reason: fmt.Sprintf("固定分配过于集中：还需要 %d 名自由选手来补足各队的最少人数 %d，但只有 %d 名", needed, minPerTeam, free),
		}
	}

	return nil
}

func (r *Roster) NumTeams() int {
	return r.numTeams
}

func (r *Roster) Size() int {
	return len(r.players)
}

// Players 返回按基因顺序排列的选手，调用方不应修改返回的切片
func (r *Roster) Players() []domain.Player {
	return r.players
}

func (r *Roster) Player(i int) domain.Player {
	return r.players[i]
}

func (r *Roster) FixedTeam(name string) (int, bool) {
	team, ok := r.fixed[name]
	return team, ok
}

// FixedAt 返回第 i 个基因被固定的队伍
func (r *Roster) FixedAt(i int) (int, bool) {
	team := r.fixedIndex[i]
	return team, team >= 0
}

func (r *Roster) FixedCount() int {
	return len(r.fixed)
}
