package roster

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/domain"
	"gopkg.in/yaml.v3"
)

// File 是名单文件的格式，avg 用指针区分缺失和 0
type File struct {
	FixedAssignments map[string]int `json:"fixed_assignments" yaml:"fixed_assignments"`
	Players          []struct {
		Name string   `json:"name" yaml:"name"`
		Avg  *float64 `json:"avg" yaml:"avg"`
		Max  *float64 `json:"max" yaml:"max"`
	} `json:"players" yaml:"players"`
}

// Load 读取名单文件，根据扩展名选择 JSON 或 YAML
func Load(path string) (map[string]int, []domain.Player, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("无法读取名单文件: %w", err)
	}

	var f File
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, nil, &domain.MalformedRosterError{Reason: "YAML 解析失败: " + err.Error()}
		}
	default:
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, nil, &domain.MalformedRosterError{Reason: "JSON 解析失败: " + err.Error()}
		}
	}

	return f.Normalize()
}

// Normalize 检查必填字段并把缺失的 max 置为 0
func (f *File) Normalize() (map[string]int, []domain.Player, error) {
	players := make([]domain.Player, 0, len(f.Players))
	for i, p := range f.Players {
		if p.Name == "" {
			return nil, nil, &domain.MalformedRosterError{Reason: fmt.Sprintf("第 %d 名选手缺少 name", i+1)}
		}
		if p.Avg == nil {
			return nil, nil, &domain.MalformedRosterError{Reason: fmt.Sprintf("选手 %s 缺少 avg", p.Name)}
		}

		player := domain.Player{Name: p.Name, Avg: *p.Avg}
		if p.Max != nil {
			player.Max = *p.Max
		}
		players = append(players, player)
	}

	fixed := f.FixedAssignments
	if fixed == nil {
		fixed = map[string]int{}
	}

	return fixed, players, nil
}

// LoadRoster 读取名单并构建 Roster
func LoadRoster(path string, numTeams int) (*Roster, error) {
	fixed, players, err := Load(path)
	if err != nil {
		return nil, err
	}
	return New(numTeams, fixed, players)
}
