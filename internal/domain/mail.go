package domain

type MailMessage struct {
	Type string `json:"type"`
	To   string `json:"to"`
	Data any    `json:"data"`
}

const MailTypeAssignmentCompleted = "assignment_completed"

type AssignmentCompletedMailData struct {
	TaskID      string     `json:"taskID"`
	Status      TaskStatus `json:"status"`
	ResultPath  string     `json:"resultPath"`
	NumTeams    int        `json:"numTeams"`
	Generations int        `json:"generations"`
	RunTime     float64    `json:"runTime"`
	Error       string     `json:"error"`
}
