package task

// TaskStats 汇总内容任务的状态分布，供 /api/v1/tasks/stats 返回。
type TaskStats struct {
	Total           int   `json:"total"`
	Pending         int   `json:"pending"`
	Running         int   `json:"running"`
	Succeeded       int   `json:"succeeded"`
	Failed          int   `json:"failed"`
	Degraded        int   `json:"degraded"`
	OldestUpdatedAt int64 `json:"oldest_updated_at,omitempty"`
	NewestUpdatedAt int64 `json:"newest_updated_at,omitempty"`
}

// add 计入一个任务。Degraded 统计以归档兜底完成的任务，它们同时计入 Succeeded。
func (s *TaskStats) add(t *Task) {
	s.Total++
	switch t.Status {
	case StatusPending:
		s.Pending++
	case StatusRunning:
		s.Running++
	case StatusSucceeded:
		s.Succeeded++
		if t.Result != nil && t.Result.Degraded != "" {
			s.Degraded++
		}
	case StatusFailed:
		s.Failed++
	}
	if t.UpdatedAt > s.NewestUpdatedAt {
		s.NewestUpdatedAt = t.UpdatedAt
	}
	if s.OldestUpdatedAt == 0 || (t.UpdatedAt != 0 && t.UpdatedAt < s.OldestUpdatedAt) {
		s.OldestUpdatedAt = t.UpdatedAt
	}
}
