package lifecycle

import (
	"sort"
	"time"

	"github.com/finey-app/finey/internal/models"
)

// Entry is a task as shown in a list.
type Entry struct {
	models.Task
	State     models.TaskState `json:"state"`
	Deletable bool             `json:"deletable"`
}

// DayGroup holds the upcoming tasks due on one calendar day.
type DayGroup struct {
	Date  string  `json:"date"`
	Tasks []Entry `json:"tasks"`
}

// Overview groups tasks the way the task list presents them.
type Overview struct {
	Upcoming  []DayGroup `json:"upcoming"`
	Completed []Entry    `json:"completed"`
	Outdated  []Entry    `json:"outdated"`
}

// BuildOverview groups tasks at now. Upcoming tasks are grouped by due day in
// now's location and sorted by due time.
func BuildOverview(tasks []models.Task, now time.Time, p Policy) Overview {
	ov := Overview{
		Upcoming:  []DayGroup{},
		Completed: []Entry{},
		Outdated:  []Entry{},
	}

	sorted := append([]models.Task(nil), tasks...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].DueDate.Before(sorted[j].DueDate)
	})

	for _, t := range sorted {
		e := Entry{Task: t, State: t.State(now), Deletable: p.CanDelete(t, now)}
		switch e.State {
		case models.TaskStateCompleted:
			ov.Completed = append(ov.Completed, e)
		case models.TaskStateOutdated:
			ov.Outdated = append(ov.Outdated, e)
		default:
			day := t.DueDate.In(now.Location()).Format(time.DateOnly)
			if n := len(ov.Upcoming); n > 0 && ov.Upcoming[n-1].Date == day {
				ov.Upcoming[n-1].Tasks = append(ov.Upcoming[n-1].Tasks, e)
			} else {
				ov.Upcoming = append(ov.Upcoming, DayGroup{Date: day, Tasks: []Entry{e}})
			}
		}
	}
	return ov
}
