package scheduler

import "fmt"

func (s *Scheduler) verifyFixed(g *Genome) error {
	for i, team := range g.Genes {
		if fixed, ok := s.roster.FixedAt(i); ok && team != fixed {
			return fmt.Errorf("选手 %s 被固定在队伍 %d，但结果中位于队伍 %d", s.roster.Player(i).Name, fixed, team)
		}
	}
	return nil
}
