package seed

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"

	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/domain"
	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/utils"
)

// Roster 的 JSON 格式和名单文件一致，可以直接作为任务的输入
type Roster struct {
	FixedAssignments map[string]int  `json:"fixed_assignments"`
	Players          []domain.Player `json:"players"`
}

type Options struct {
	Players  int
	NumTeams int // 固定分配的队伍范围，Fixed 为 0 时不使用
	Fixed    int // 随机固定分配的选手数量
	Seed     int64
}

// GenerateRoster 生成一份随机名单，选手名为中文名的拼音缩写加数字，保证不重复
func GenerateRoster(opts Options) (*Roster, error) {
	if opts.Players <= 0 {
		return nil, fmt.Errorf("选手数量必须大于 0，当前为 %d", opts.Players)
	}
	if opts.Fixed < 0 || opts.Fixed > opts.Players {
		return nil, fmt.Errorf("固定分配的数量必须在 [0, %d] 之间，当前为 %d", opts.Players, opts.Fixed)
	}
	if opts.Fixed > 0 && opts.NumTeams <= 0 {
		return nil, fmt.Errorf("固定分配时必须指定队伍数量")
	}

	seed := opts.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	rng := rand.New(rand.NewSource(seed))

	r := &Roster{
		FixedAssignments: make(map[string]int),
		Players:          make([]domain.Player, 0, opts.Players),
	}

	seen := make(map[string]bool, opts.Players)
	for len(r.Players) < opts.Players {
		name := utils.GenerateHandleFromChineseName(rng, utils.GenerateRandomChineseName(rng))
		if seen[name] {
			continue
		}
		seen[name] = true

		avg := utils.GenerateRandomScore(rng, 50, 8, 20, 80)
		r.Players = append(r.Players, domain.Player{
			Name: name,
			Avg:  avg,
			Max:  utils.GenerateRandomScore(rng, avg+20, 5, avg, 100),
		})
	}

	// 轮流分配到各个队伍，避免固定分配集中在同一个队伍导致无解
	for i, idx := range rng.Perm(opts.Players)[:opts.Fixed] {
		r.FixedAssignments[r.Players[idx].Name] = i % opts.NumTeams
	}

	return r, nil
}

func (r *Roster) WriteFile(path string) error {
	data, err := json.MarshalIndent(r, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
