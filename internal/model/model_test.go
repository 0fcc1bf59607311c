package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTimelineItem_LocalID(t *testing.T) {
	items := []TimelineItem{
		StatusItem{Status: Status{ID: "8"}},
		GapItem{ID: "5"},
		StatusItem{Status: Status{ID: "3"}},
	}
	assert.Equal(t, []string{"8", "5", "3"}, ItemIDs(items))
}

func TestStatusItems(t *testing.T) {
	items := StatusItems([]Status{{ID: "2"}, {ID: "1"}})
	if assert.Len(t, items, 2) {
		_, ok := items[0].(StatusItem)
		assert.True(t, ok)
		assert.Equal(t, "1", items[1].LocalID())
	}
}

func TestParseNotificationType(t *testing.T) {
	assert.Equal(t, NotificationMention, ParseNotificationType("mention"))
	assert.Equal(t, NotificationReport, ParseNotificationType("admin.report"))
	assert.Equal(t, NotificationUnknown, ParseNotificationType("quote"))
	assert.Equal(t, NotificationUnknown, ParseNotificationType(""))
}

func TestNotificationType_HasStatus(t *testing.T) {
	assert.True(t, NotificationFavourite.HasStatus())
	assert.True(t, NotificationPoll.HasStatus())
	assert.False(t, NotificationFollow.HasStatus())
	assert.False(t, NotificationReport.HasStatus())
	assert.False(t, NotificationUnknown.HasStatus())
}

func TestNotification_Validate(t *testing.T) {
	st := &Status{ID: "40"}
	rep := &Report{ID: "r1"}
	tests := []struct {
		name string
		n    Notification
		want string
	}{
		{"mention with status", Notification{ID: "1", Type: NotificationMention, Status: st}, ""},
		{"mention without status", Notification{ID: "1", Type: NotificationMention}, "mention without a status"},
		{"mention with report", Notification{ID: "1", Type: NotificationMention, Status: st, Report: rep}, "mention with a report"},
		{"report with report", Notification{ID: "2", Type: NotificationReport, Report: rep}, ""},
		{"report without report", Notification{ID: "2", Type: NotificationReport}, "admin.report without a report"},
		{"report with status", Notification{ID: "2", Type: NotificationReport, Report: rep, Status: st}, "admin.report with a status"},
		{"follow", Notification{ID: "3", Type: NotificationFollow}, ""},
		{"follow with status", Notification{ID: "3", Type: NotificationFollow, Status: st}, "follow carries a payload"},
		{"unknown", Notification{ID: "4", Type: NotificationUnknown}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.n.Validate()
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.want)
			}
		})
	}
}

func TestNotification_Payload(t *testing.T) {
	mention := Notification{Type: NotificationMention, Status: &Status{ID: "40"}}
	assert.Equal(t, StatusPayload{Status: Status{ID: "40"}}, mention.Payload())

	report := Notification{Type: NotificationReport, Report: &Report{ID: "r1"}}
	assert.Equal(t, ReportPayload{Report: Report{ID: "r1"}}, report.Payload())

	assert.Equal(t, NoPayload{}, Notification{Type: NotificationFollow}.Payload())
	assert.Equal(t, NoPayload{}, Notification{Type: NotificationMention}.Payload(), "a dropped status reads back as no payload")
}
