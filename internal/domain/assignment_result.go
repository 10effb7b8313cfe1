package domain

import (
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

type ResultParameters struct {
	NumTeams     int     `json:"num_teams"`
	Repeat       int     `json:"repeat"`
	DataPath     string  `json:"data_path"`
	RunTime      float64 `json:"run_time"`
	OriginalData string  `json:"original_data,omitempty"` // 仅在交换成员后的结果中存在
	SwapInfo     string  `json:"swap_info,omitempty"`
}

type TeamMember struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

type Team struct {
	Label      string       `json:"label"`
	TotalScore float64      `json:"totalScore"`
	Members    []TeamMember `json:"members"` // 按分数从高到低排列
}

// AssignmentResult 的 JSON 格式和历史结果文件保持一致：
//
//	{"parameters": {...}, "results": {"Team 1": {"Total Score": 95, "Members": {"P2": 55, ...}}}}
//
// results 和 Members 都是有序对象，编解码时借助有序 map 保留顺序。
type AssignmentResult struct {
	Parameters ResultParameters
	Teams      []Team
}

func (r *AssignmentResult) Clone() *AssignmentResult {
	c := &AssignmentResult{
		Parameters: r.Parameters,
		Teams:      make([]Team, len(r.Teams)),
	}
	for i, team := range r.Teams {
		c.Teams[i] = Team{
			Label:      team.Label,
			TotalScore: team.TotalScore,
			Members:    append([]TeamMember(nil), team.Members...),
		}
	}
	return c
}

// resultFile 是结果文件的实际结构，队伍和成员的顺序由有序 map 保留
type resultFile struct {
	Parameters ResultParameters                         `json:"parameters"`
	Results    *orderedmap.OrderedMap[string, teamFile] `json:"results"`
}

type teamFile struct {
	TotalScore float64                                 `json:"Total Score"`
	Members    *orderedmap.OrderedMap[string, float64] `json:"Members"`
}

func (r AssignmentResult) MarshalJSON() ([]byte, error) {
	results := orderedmap.New[string, teamFile]()
	for _, team := range r.Teams {
		members := orderedmap.New[string, float64]()
		for _, member := range team.Members {
			members.Set(member.Name, member.Score)
		}
		results.Set(team.Label, teamFile{TotalScore: team.TotalScore, Members: members})
	}

	return json.Marshal(resultFile{Parameters: r.Parameters, Results: results})
}

func (r *AssignmentResult) UnmarshalJSON(data []byte) error {
	var f resultFile
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("结果文件格式错误: %w", err)
	}

	r.Parameters = f.Parameters
	r.Teams = nil
	if f.Results == nil {
		return nil
	}

	r.Teams = make([]Team, 0, f.Results.Len())
	for pair := f.Results.Oldest(); pair != nil; pair = pair.Next() {
		team := Team{Label: pair.Key, TotalScore: pair.Value.TotalScore, Members: []TeamMember{}}
		if pair.Value.Members != nil {
			for m := pair.Value.Members.Oldest(); m != nil; m = m.Next() {
				team.Members = append(team.Members, TeamMember{Name: m.Key, Score: m.Value})
			}
		}
		r.Teams = append(r.Teams, team)
	}

	return nil
}
