package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/t77yq/nextrun/internal/model"
)

func TestIsValidSchedule(t *testing.T) {
	tests := []struct {
		name     string
		schedule model.Schedule
		want     bool
	}{
		{name: "nil", schedule: nil, want: false},
		{name: "typed nil hourly", schedule: (*model.Hourly)(nil), want: false},
		{name: "typed nil weekly", schedule: (*model.Weekly)(nil), want: false},

		{name: "hourly interval 0", schedule: model.Hourly{Interval: 0}, want: false},
		{name: "hourly interval 1", schedule: model.Hourly{Interval: 1}, want: true},
		{name: "hourly interval 12", schedule: model.Hourly{Interval: 12}, want: true},
		{name: "hourly interval 13", schedule: model.Hourly{Interval: 13}, want: false},
		{name: "hourly negative", schedule: model.Hourly{Interval: -2}, want: false},
		{name: "hourly pointer", schedule: &model.Hourly{Interval: 6}, want: true},

		{name: "daily empty", schedule: model.Daily{Hours: []int{}}, want: false},
		{name: "daily nil hours", schedule: model.Daily{}, want: false},
		{name: "daily bounds", schedule: model.Daily{Hours: []int{0, 23}}, want: true},
		{name: "daily duplicates", schedule: model.Daily{Hours: []int{5, 5, 2}}, want: true},
		{name: "daily hour 24", schedule: model.Daily{Hours: []int{1, 24}}, want: false},
		{name: "daily hour 26 among valid", schedule: model.Daily{Hours: []int{5, 26, 9}}, want: false},
		{name: "daily negative hour", schedule: model.Daily{Hours: []int{-1}}, want: false},
		{name: "daily pointer", schedule: &model.Daily{Hours: []int{3}}, want: true},

		{name: "weekly valid", schedule: model.Weekly{Days: []int{0, 6}, Hours: []int{0, 23}}, want: true},
		{name: "weekly empty days", schedule: model.Weekly{Days: []int{}, Hours: []int{5}}, want: false},
		{name: "weekly empty hours", schedule: model.Weekly{Days: []int{1}, Hours: []int{}}, want: false},
		{name: "weekly day 7", schedule: model.Weekly{Days: []int{7}, Hours: []int{5}}, want: false},
		{name: "weekly day 9 among valid", schedule: model.Weekly{Days: []int{1, 9}, Hours: []int{5}}, want: false},
		{name: "weekly hour 26", schedule: model.Weekly{Days: []int{1}, Hours: []int{26}}, want: false},
		{name: "weekly pointer", schedule: &model.Weekly{Days: []int{2}, Hours: []int{2}}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidSchedule(tt.schedule))
		})
	}
}

func TestIsValidScheduleIsPure(t *testing.T) {
	s := model.Weekly{Days: []int{5, 2, 4}, Hours: []int{22, 5, 2}}

	for i := 0; i < 3; i++ {
		assert.True(t, IsValidSchedule(s))
	}
	assert.Equal(t, []int{5, 2, 4}, s.Days)
	assert.Equal(t, []int{22, 5, 2}, s.Hours)

	invalid := model.Daily{Hours: []int{}}
	for i := 0; i < 3; i++ {
		assert.False(t, IsValidSchedule(invalid))
	}
}
