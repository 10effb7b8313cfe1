package domain

type Player struct {
	Name string  `json:"name" yaml:"name"`
	Avg  float64 `json:"avg" yaml:"avg"`
	Max  float64 `json:"max" yaml:"max"` // 原始数据中 max 缺失时为 0
}
